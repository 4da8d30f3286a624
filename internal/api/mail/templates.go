package mail

import (
	"regexp"
	"strings"
)

// ContentKind classifies rendered mail content, computed once per message.
type ContentKind int

const (
	KindText ContentKind = iota
	KindHTML
)

// Template keys understood by SendTemplated.
const (
	TemplateWelcomeTempPassword = "welcomeTempPassword"
	TemplatePasswordReset       = "passwordReset"
	TemplateVerifyEmail         = "verifyEmail"
)

// DefaultTemplates reference the variables the lifecycle engine supplies:
// nameOrEmail, tempPassword, resetToken, verificationToken, actionUrl.
var DefaultTemplates = map[string]string{
	TemplateWelcomeTempPassword: "Hello {{nameOrEmail}},\n\nWelcome aboard! Your temporary password is: {{tempPassword}}\n\nPlease sign in and change it immediately from your account settings.{{actionUrl?}}\n\nThanks,\nThe Auth Team",

	TemplatePasswordReset: "Hi {{nameOrEmail}},\n\nUse this token to reset your password: {{resetToken}}\nReset here: {{actionUrl}}\nIf you didn't request this, please ignore this email.",

	TemplateVerifyEmail: "Hello {{nameOrEmail}},\n\nVerify your email using this token: {{verificationToken}}\nVerify here: {{actionUrl}}",
}

var (
	optionalBlockRe = regexp.MustCompile(`\{\{(\w+)\?\}\}`)
	variableRe      = regexp.MustCompile(`\{\{(.*?)\}\}`)
)

// Render substitutes {{var}} placeholders in template. Two passes: the
// optional-block pass first ({{var?}} renders to the value prefixed by a
// newline, or to nothing when absent/empty), then the plain pass. Unknown
// variables render as empty string.
func Render(template string, variables map[string]string) string {
	withOptional := optionalBlockRe.ReplaceAllStringFunc(template, func(m string) string {
		key := optionalBlockRe.FindStringSubmatch(m)[1]
		if val := variables[key]; val != "" {
			return "\n" + val
		}
		return ""
	})

	return variableRe.ReplaceAllStringFunc(withOptional, func(m string) string {
		key := strings.TrimSpace(variableRe.FindStringSubmatch(m)[1])
		return variables[key]
	})
}

// DetectContentKind sniffs document markers to decide whether rendered
// content should be sent as HTML.
func DetectContentKind(content string) ContentKind {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "<!doctype html"):
		return KindHTML
	case strings.HasPrefix(lower, "<html"):
		return KindHTML
	case strings.Contains(trimmed, "<html") && strings.Contains(trimmed, "</html>"):
		return KindHTML
	default:
		return KindText
	}
}

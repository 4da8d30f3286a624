package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/go-account-service/app/observability/metrics"
	"github.com/FACorreiaa/go-account-service/internal/api"
	"github.com/FACorreiaa/go-account-service/internal/api/mail"
)

const tempPasswordLength = 12

// Mailer is the slice of the notifier the service depends on.
type Mailer interface {
	SendTemplated(ctx context.Context, msg mail.TemplatedMessage) error
}

var _ AuthService = (*ServiceImpl)(nil)

// AuthService covers the full account lifecycle: registration, sessions,
// password flows, email verification and activation state.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context) (*Response, error)
	RevokeToken(ctx context.Context) (*Response, error)
	Me(ctx context.Context, userID uuid.UUID) (*User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*RefreshResponse, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*Response, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) (*Response, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) (*Response, error)
	VerifyEmail(ctx context.Context, token string) (*Response, error)
	ResendVerification(ctx context.Context, req ResendVerificationRequest) (*Response, error)
	SetUserActiveStatus(ctx context.Context, userID uuid.UUID, active bool) (*User, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) (*Response, error)
	SoftDeleteUser(ctx context.Context, callerEmail string, req SoftDeleteUserRequest) (*SoftDeleteUserResponse, error)
}

type ServiceImpl struct {
	logger      *slog.Logger
	repo        UserRepo
	tokens      *TokenIssuer
	notifier    Mailer
	adminEmails map[string]struct{}

	// Default link bases applied when a request does not carry its own.
	resetBaseURL  string
	verifyBaseURL string
	linkQueryName string
}

func NewServiceImpl(repo UserRepo, tokens *TokenIssuer, notifier Mailer, adminEmails []string, logger *slog.Logger) *ServiceImpl {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return &ServiceImpl{
		logger:      logger,
		repo:        repo,
		tokens:      tokens,
		notifier:    notifier,
		adminEmails: admins,
	}
}

// WithDefaultLinks sets the fallback action URL bases used when requests do
// not override them.
func (s *ServiceImpl) WithDefaultLinks(resetBase, verifyBase, queryName string) *ServiceImpl {
	s.resetBaseURL = resetBase
	s.verifyBaseURL = verifyBase
	s.linkQueryName = queryName
	return s
}

func (s *ServiceImpl) isAdminEmail(email string) bool {
	_, ok := s.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func (s *ServiceImpl) recordOp(ctx context.Context, start time.Time, err error) {
	m := metrics.Get()
	m.AuthOperationsTotal.Add(ctx, 1)
	m.AuthOperationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.AuthOperationErrors.Add(ctx, 1)
	}
}

func (s *ServiceImpl) issueTokenPair(user *User) (string, string, error) {
	accessToken, err := s.tokens.IssueAccess(user.ID.String(), user.Email)
	if err != nil {
		return "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.IssueRefresh(user.ID.String(), user.Email)
	if err != nil {
		return "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}

// Register creates an account. When no password is supplied a temporary one
// is generated and mailed to the new user; a failed welcome mail fails the
// whole registration so the caller knows the credential never arrived.
func (s *ServiceImpl) Register(ctx context.Context, req RegisterRequest) (resp *AuthResponse, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, api.NewValidationError("Email is required", map[string]any{"email": "required"})
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, api.NewError(api.ErrConflict, "User with this email already exists")
	} else if !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}

	password := req.Password
	generated := false
	if password == "" {
		password, err = GenerateTempPassword(tempPasswordLength)
		if err != nil {
			return nil, fmt.Errorf("generate temporary password: %w", err)
		}
		generated = true
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, hash, req.Name)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			return nil, api.NewError(api.ErrConflict, "User with this email already exists")
		}
		return nil, err
	}

	if generated {
		nameOrEmail := user.Email
		if user.Name != nil && *user.Name != "" {
			nameOrEmail = *user.Name
		}
		err = s.notifier.SendTemplated(ctx, mail.TemplatedMessage{
			To:           user.Email,
			Subject:      req.EmailSubject,
			TemplateKey:  req.EmailTemplateKey,
			TemplateText: req.EmailTemplateText,
			Variables: map[string]string{
				"nameOrEmail":  nameOrEmail,
				"tempPassword": password,
			},
		})
		if err != nil {
			return nil, api.NewError(api.ErrInternal, "Failed to send welcome email")
		}
	}

	accessToken, refreshToken, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	return &AuthResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Login checks existence, then activation, then the password. The ordering
// keeps the deactivated response distinct while unknown emails and wrong
// passwords collapse to the same message.
func (s *ServiceImpl) Login(ctx context.Context, req LoginRequest) (resp *AuthResponse, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrUnauthenticated, "Invalid credentials")
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, api.NewError(api.ErrForbidden, "User account is deactivated")
	}

	if !ComparePasswords(req.Password, user.Password) {
		return nil, api.NewError(api.ErrUnauthenticated, "Invalid credentials")
	}

	accessToken, refreshToken, err := s.issueTokenPair(user)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{User: user, AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout is stateless: tokens are not tracked server side, so the client
// simply discards them.
func (s *ServiceImpl) Logout(ctx context.Context) (*Response, error) {
	s.recordOp(ctx, time.Now(), nil)
	return &Response{Success: true, Message: "Logged out successfully"}, nil
}

// RevokeToken acknowledges the request; without server-side token state the
// token simply ages out.
func (s *ServiceImpl) RevokeToken(ctx context.Context) (*Response, error) {
	s.recordOp(ctx, time.Now(), nil)
	return &Response{Success: true, Message: "Token revoked"}, nil
}

func (s *ServiceImpl) Me(ctx context.Context, userID uuid.UUID) (out *User, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, api.NewError(api.ErrForbidden, "User account is deactivated")
	}
	return user, nil
}

// RefreshToken exchanges a valid refresh token for a fresh access token; the
// refresh token itself stays valid until it expires. Every failure mode
// collapses to the same unauthenticated response.
func (s *ServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (resp *RefreshResponse, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	invalid := api.NewError(api.ErrUnauthenticated, "Invalid refresh token")

	claims, err := s.tokens.Verify(refreshToken, true)
	if err != nil {
		return nil, invalid
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, invalid
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, invalid
	}

	accessToken, err := s.tokens.IssueAccess(user.ID.String(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &RefreshResponse{AccessToken: accessToken}, nil
}

// ForgotPassword issues a reset token and mails a reset link. Unknown emails
// get the same success response so the endpoint cannot be used to probe for
// accounts.
func (s *ServiceImpl) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	sent := &Response{Success: true, Message: "If the email exists, a password reset link has been sent"}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return sent, nil
		}
		return nil, err
	}

	token, err := s.tokens.IssueReset(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("issue reset token: %w", err)
	}
	if err := s.repo.SetResetToken(ctx, user.ID, token); err != nil {
		return nil, err
	}

	linkBase := req.EmailLinkBase
	if linkBase == "" {
		linkBase = s.resetBaseURL
	}
	queryName := req.EmailLinkQueryName
	if queryName == "" {
		queryName = s.linkQueryName
	}
	actionURL := buildActionURL(req.EmailLinkTemplateText, linkBase, queryName, token)

	nameOrEmail := user.Email
	if user.Name != nil && *user.Name != "" {
		nameOrEmail = *user.Name
	}

	templateKey := req.EmailTemplateKey
	if templateKey == "" && req.EmailTemplateText == "" {
		templateKey = mail.TemplatePasswordReset
	}
	subject := req.EmailSubject
	if subject == "" {
		subject = "Reset your password"
	}

	err = s.notifier.SendTemplated(ctx, mail.TemplatedMessage{
		To:           user.Email,
		Subject:      subject,
		TemplateKey:  templateKey,
		TemplateText: req.EmailTemplateText,
		Variables: map[string]string{
			"nameOrEmail": nameOrEmail,
			"resetToken":  token,
			"actionUrl":   actionURL,
		},
	})
	if err != nil {
		return nil, api.NewError(api.ErrInternal, "Failed to send password reset email")
	}

	return sent, nil
}

// ResetPassword consumes a reset token. The token must verify against the
// refresh secret AND exactly match the stored value, which makes it single
// use.
func (s *ServiceImpl) ResetPassword(ctx context.Context, req ResetPasswordRequest) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	invalid := api.NewError(api.ErrValidation, "Invalid or expired reset token")

	if req.NewPassword == "" {
		return nil, api.NewValidationError("New password is required", map[string]any{"newPassword": "required"})
	}

	claims, err := s.tokens.Verify(req.Token, true)
	if err != nil {
		return nil, invalid
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, invalid
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if user.ResetToken == nil || *user.ResetToken != req.Token {
		return nil, invalid
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordAndClearResetToken(ctx, user.ID, hash); err != nil {
		return nil, err
	}

	return &Response{Success: true, Message: "Password has been reset successfully"}, nil
}

func (s *ServiceImpl) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	if req.NewPassword == "" {
		return nil, api.NewValidationError("New password is required", map[string]any{"newPassword": "required"})
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, api.NewError(api.ErrForbidden, "User account is deactivated")
	}
	if !ComparePasswords(req.CurrentPassword, user.Password) {
		return nil, api.NewError(api.ErrUnauthenticated, "Invalid current password")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return nil, err
	}

	return &Response{Success: true, Message: "Password changed successfully"}, nil
}

// VerifyEmail consumes a verification token. Signature, expiry, mismatch and
// deactivated-account failures all collapse to the same response.
func (s *ServiceImpl) VerifyEmail(ctx context.Context, token string) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	invalid := api.NewError(api.ErrValidation, "Invalid or expired verification token")

	claims, err := s.tokens.Verify(token, false)
	if err != nil {
		return nil, invalid
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, invalid
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, invalid
	}
	if user.VerificationToken == nil || *user.VerificationToken != token {
		return nil, invalid
	}

	if err := s.repo.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	return &Response{Success: true, Message: "Email verified successfully"}, nil
}

// ResendVerification issues a fresh verification token. Unknown emails get
// the same success response; a deactivated account is refused outright.
func (s *ServiceImpl) ResendVerification(ctx context.Context, req ResendVerificationRequest) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	sent := &Response{Success: true, Message: "If the email exists, a verification link has been sent"}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return sent, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, api.NewError(api.ErrForbidden, "User account is deactivated")
	}

	token, err := s.tokens.IssueVerification(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}
	if err := s.repo.SetVerificationToken(ctx, user.ID, token); err != nil {
		return nil, err
	}

	linkBase := req.EmailLinkBase
	if linkBase == "" {
		linkBase = s.verifyBaseURL
	}
	queryName := req.EmailLinkQueryName
	if queryName == "" {
		queryName = s.linkQueryName
	}
	actionURL := buildActionURL(req.EmailLinkTemplateText, linkBase, queryName, token)

	nameOrEmail := user.Email
	if user.Name != nil && *user.Name != "" {
		nameOrEmail = *user.Name
	}

	templateKey := req.EmailTemplateKey
	if templateKey == "" && req.EmailTemplateText == "" {
		templateKey = mail.TemplateVerifyEmail
	}
	subject := req.EmailSubject
	if subject == "" {
		subject = "Verify your email"
	}

	err = s.notifier.SendTemplated(ctx, mail.TemplatedMessage{
		To:           user.Email,
		Subject:      subject,
		TemplateKey:  templateKey,
		TemplateText: req.EmailTemplateText,
		Variables: map[string]string{
			"nameOrEmail":       nameOrEmail,
			"verificationToken": token,
			"actionUrl":         actionURL,
		},
	})
	if err != nil {
		return nil, api.NewError(api.ErrInternal, "Failed to send verification email")
	}

	return sent, nil
}

// SetUserActiveStatus flips the activation flag. Setting the current state
// again is a no-op that skips the write.
func (s *ServiceImpl) SetUserActiveStatus(ctx context.Context, userID uuid.UUID, active bool) (out *User, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}

	updated, err := s.repo.SetActiveStatus(ctx, userID, active)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	return updated, nil
}

// DeleteAccount removes the caller's account permanently.
func (s *ServiceImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) (resp *Response, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	if err := s.repo.DeleteUserByID(ctx, userID); err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "Account deleted", slog.String("user_id", userID.String()))
	return &Response{Success: true, Message: "Account deleted successfully"}, nil
}

// SoftDeleteUser deactivates another user's account by id. Only admins may
// call it, never against themselves or another admin.
func (s *ServiceImpl) SoftDeleteUser(ctx context.Context, callerEmail string, req SoftDeleteUserRequest) (resp *SoftDeleteUserResponse, err error) {
	defer func(start time.Time) { s.recordOp(ctx, start, err) }(time.Now())

	if !s.isAdminEmail(callerEmail) {
		return nil, api.NewError(api.ErrForbidden, "Only administrators can soft delete users")
	}
	if req.UserID == uuid.Nil {
		return nil, api.NewValidationError("User id is required", map[string]any{"userId": "required"})
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil, api.NewError(api.ErrNotFound, "User not found")
		}
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(callerEmail), strings.TrimSpace(user.Email)) {
		return nil, api.NewError(api.ErrValidation, "Administrators cannot soft delete their own account")
	}
	if s.isAdminEmail(user.Email) {
		return nil, api.NewError(api.ErrForbidden, "Administrator accounts cannot be soft deleted")
	}
	if !user.IsActive {
		return &SoftDeleteUserResponse{User: user, Message: "User is already deactivated"}, nil
	}

	updated, err := s.repo.SetActiveStatus(ctx, user.ID, false)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "User soft deleted",
		slog.String("target", user.ID.String()), slog.String("by", strings.ToLower(callerEmail)))
	return &SoftDeleteUserResponse{User: updated, Message: "User soft deleted successfully"}, nil
}

// buildActionURL renders the link included in reset and verification mails.
// An explicit link template wins, then a base URL with the token appended as
// a query parameter; with neither configured no link is rendered.
func buildActionURL(templateText, base, queryName, token string) string {
	if templateText != "" {
		return strings.ReplaceAll(templateText, "{{token}}", escapeURIComponent(token))
	}
	if base == "" {
		return ""
	}
	if queryName == "" {
		queryName = "token"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + escapeURIComponent(queryName) + "=" + escapeURIComponent(token)
}

// escapeURIComponent percent-encodes with %20 for spaces, so the token stays
// valid when substituted into a path position.
func escapeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

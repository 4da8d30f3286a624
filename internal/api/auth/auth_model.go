package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is the account record as stored in the auth database. The password
// hash never leaves the service.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	Password          string    `json:"-"`
	Name              *string   `json:"name,omitempty"`
	IsVerified        bool      `json:"isVerified"`
	IsActive          bool      `json:"isActive"`
	VerificationToken *string   `json:"-"`
	ResetToken        *string   `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UserSummary is the slim projection used by reconciliation against the
// upstream profile database.
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`

	// Optional overrides for the welcome mail sent when a temporary
	// password is generated.
	EmailSubject      string `json:"emailSubject,omitempty"`
	EmailTemplateKey  string `json:"emailTemplateKey,omitempty"`
	EmailTemplateText string `json:"emailTemplateText,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`

	EmailSubject          string `json:"emailSubject,omitempty"`
	EmailTemplateKey      string `json:"emailTemplateKey,omitempty"`
	EmailTemplateText     string `json:"emailTemplateText,omitempty"`
	EmailLinkBase         string `json:"emailLinkBase,omitempty"`
	EmailLinkQueryName    string `json:"emailLinkQueryName,omitempty"`
	EmailLinkTemplateText string `json:"emailLinkTemplateText,omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`

	EmailSubject          string `json:"emailSubject,omitempty"`
	EmailTemplateKey      string `json:"emailTemplateKey,omitempty"`
	EmailTemplateText     string `json:"emailTemplateText,omitempty"`
	EmailLinkBase         string `json:"emailLinkBase,omitempty"`
	EmailLinkQueryName    string `json:"emailLinkQueryName,omitempty"`
	EmailLinkTemplateText string `json:"emailLinkTemplateText,omitempty"`
}

// UserActivationRequest targets the user whose activation flag is flipped.
type UserActivationRequest struct {
	UserID uuid.UUID `json:"userId"`
}

type SoftDeleteUserRequest struct {
	UserID uuid.UUID `json:"userId"`
}

// SoftDeleteUserResponse carries the deactivated user back to the admin.
type SoftDeleteUserResponse struct {
	User    *User  `json:"user"`
	Message string `json:"message"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is returned by the refresh exchange; the refresh token
// itself is never rotated there.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Response is the generic success envelope for operations with no payload.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

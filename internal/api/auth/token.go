package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FACorreiaa/go-account-service/config"
)

// Token verification failures. Both collapse to "invalid or expired" at the
// API boundary; callers that need to distinguish (tests, logging) can use
// errors.Is against these.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// Claims carried by every token. Action tokens (reset, verification) only
// set Subject.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates the two token classes. Access and refresh
// tokens use independent secrets; action tokens reuse them with the short
// action TTL (verification tokens ride the access secret, reset tokens the
// refresh secret).
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	actionTTL     time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("JWT secrets must be configured")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	actionTTL := cfg.ActionTokenTTL
	if actionTTL <= 0 {
		actionTTL = 30 * time.Minute
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		actionTTL:     actionTTL,
		now:           time.Now,
	}, nil
}

// IssueAccess mints a short-lived access token carrying sub and email.
func (t *TokenIssuer) IssueAccess(userID, email string) (string, error) {
	return t.sign(t.accessSecret, userID, email, t.accessTTL)
}

// IssueRefresh mints a long-lived refresh token carrying sub and email.
func (t *TokenIssuer) IssueRefresh(userID, email string) (string, error) {
	return t.sign(t.refreshSecret, userID, email, t.refreshTTL)
}

// IssueVerification mints an email-verification action token (access
// secret, action TTL, sub only).
func (t *TokenIssuer) IssueVerification(userID string) (string, error) {
	return t.sign(t.accessSecret, userID, "", t.actionTTL)
}

// IssueReset mints a password-reset action token (refresh secret, action
// TTL, sub only).
func (t *TokenIssuer) IssueReset(userID string) (string, error) {
	return t.sign(t.refreshSecret, userID, "", t.actionTTL)
}

// Verify parses and validates a token against the access or refresh secret.
// Expiry maps to ErrTokenExpired, every other failure to ErrTokenInvalid.
func (t *TokenIssuer) Verify(tokenString string, isRefresh bool) (*Claims, error) {
	secret := t.accessSecret
	if isRefresh {
		secret = t.refreshSecret
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	token, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (t *TokenIssuer) sign(secret []byte, userID, email string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

package auth

import (
	"github.com/nerrad567/hatch-bridge/internal/infrastructure/config"
)

// Authenticator verifies the single configured admin credential and
// issues/validates access tokens.
//
// Thread Safety: immutable after construction; safe for concurrent use.
type Authenticator struct {
	username     string
	passwordHash string
	secret       string
	ttlMinutes   int
}

// NewAuthenticator builds an authenticator from the security config.
func NewAuthenticator(cfg config.SecurityConfig) *Authenticator {
	return &Authenticator{
		username:     cfg.Admin.Username,
		passwordHash: cfg.Admin.PasswordHash,
		secret:       cfg.JWT.Secret,
		ttlMinutes:   cfg.JWT.AccessTokenTTL,
	}
}

// Login verifies the credential pair and returns a signed access token.
// A wrong username and a wrong password return the same error so the
// response does not leak which half failed.
func (a *Authenticator) Login(username, password string) (string, error) {
	if username != a.username {
		// Burn a hash anyway to keep timing comparable.
		//nolint:errcheck // result intentionally discarded
		VerifyPassword(password, a.passwordHash)
		return "", ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, a.passwordHash)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	return GenerateAccessToken(a.username, a.secret, a.ttlMinutes)
}

// Validate parses and validates a bearer token.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}

package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// OperatorCredentials is the single configured operator account.
type OperatorCredentials struct {
	Username     string
	PasswordHash string // Argon2id encoded hash
}

// AuthServiceImpl implements ports.AuthService for the operator console.
type AuthServiceImpl struct {
	creds    OperatorCredentials
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	creds OperatorCredentials,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		creds:    creds,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		log:      log,
	}
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if s.creds.Username == "" || s.creds.PasswordHash == "" {
		s.log.Warn().Msg("operator login attempted but no operator is configured")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.creds.Username)) != 1 {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	// Verify password
	valid, err := s.hashSvc.Verify(password, s.creds.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		s.log.Warn().Str("operator", username).Msg("operator login failed")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("operator", username).Msg("operator logged in")
	return token, expiry, nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// AuthorityAuthService implements ports.AuthService. A single operator
// credential, configured at deploy time, maps to the treasury authority
// wallet; a successful login yields a JWT whose subject is that wallet.
type AuthorityAuthService struct {
	username        string
	passwordHash    string // Argon2id encoded
	authorityWallet string
	hashSvc         ports.HashService
	tokenSvc        ports.TokenService
	log             zerolog.Logger
}

// NewAuthorityAuthService creates a new AuthorityAuthService.
func NewAuthorityAuthService(
	username, passwordHash, authorityWallet string,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthorityAuthService {
	return &AuthorityAuthService{
		username:        username,
		passwordHash:    passwordHash,
		authorityWallet: authorityWallet,
		hashSvc:         hashSvc,
		tokenSvc:        tokenSvc,
		log:             log,
	}
}

// Login authenticates the operator and returns a signed authority token.
func (s *AuthorityAuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	if username != s.username {
		// Burn a verification anyway so username probing and password
		// failures take comparable time.
		_, _ = s.hashSvc.Verify(password, s.passwordHash)
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, s.passwordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		s.log.Warn().Str("username", username).Msg("failed authority login")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(s.authorityWallet)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().Str("username", username).Msg("authority login")
	return token, expiresAt, nil
}

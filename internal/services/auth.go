package services

import (
	"context"
	"time"

	"github.com/sbilibin2017/watertemp-auth/internal/logger"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
)

//go:generate mockgen -source=auth.go -destination=auth_mock.go -package=services

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.Account, error)
}

// JWTGenerator defines an interface for generating JWT tokens.
type JWTGenerator interface {
	Generate(ctx context.Context, account *models.Account) (string, error)
	Expiration() time.Duration
}

// AuthService handles login.
type AuthService struct {
	auth       Authenticator
	jwt        JWTGenerator
	loginDelay time.Duration
}

// NewAuthService creates a new AuthService. loginDelay is waited before every login attempt.
func NewAuthService(auth Authenticator, jwt JWTGenerator, loginDelay time.Duration) *AuthService {
	return &AuthService{
		auth:       auth,
		jwt:        jwt,
		loginDelay: loginDelay,
	}
}

// Login authenticates an account and returns a signed token with its lifetime.
func (svc *AuthService) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	if svc.loginDelay > 0 {
		timer := time.NewTimer(svc.loginDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	account, err := svc.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, err := svc.jwt.Generate(ctx, account)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return nil, err
	}

	return &models.LoginResult{
		Token:     token,
		ExpiresIn: int64(svc.jwt.Expiration() / time.Second),
		Account:   account,
	}, nil
}

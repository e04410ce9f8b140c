package jwt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sbilibin2017/watertemp-auth/internal/models"
)

const (
	// MinSecretBytes is the minimum signing key length for HS256 (256 bits).
	MinSecretBytes = 32

	base64SecretPrefix = "base64:"

	defaultExpiration = 24 * time.Hour
	defaultClockSkew  = 30 * time.Second
)

// Secret configuration errors. Any of them must stop the process at startup.
var (
	ErrEmptySecret         = errors.New("JWT secret is not configured")
	ErrInvalidBase64Secret = errors.New("JWT secret is prefixed with 'base64:' but is not valid base64")
	ErrSecretTooShort      = errors.New("JWT secret too short")
)

// Claims are the identity facts embedded in an access token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// AccountID parses the subject claim as an account id.
func (c *Claims) AccountID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject claim %q: %w", c.Subject, err)
	}
	return id, nil
}

// JWT issues and validates HS256 access tokens.
type JWT struct {
	key       []byte
	secretRaw string
	exp       time.Duration
	skew      time.Duration
	now       func() time.Time
}

// Opt configures a JWT.
type Opt func(*JWT)

// WithSecretKey sets the signing secret, raw text or "base64:"-prefixed.
func WithSecretKey(secret string) Opt {
	return func(j *JWT) {
		j.secretRaw = secret
	}
}

// WithExpiration sets the token lifetime.
func WithExpiration(exp time.Duration) Opt {
	return func(j *JWT) {
		j.exp = exp
	}
}

// WithClockSkew sets the leeway applied when checking expiry.
func WithClockSkew(skew time.Duration) Opt {
	return func(j *JWT) {
		j.skew = skew
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Opt {
	return func(j *JWT) {
		j.now = now
	}
}

// New creates a JWT instance. The signing key is derived once here and never changes.
func New(opts ...Opt) (*JWT, error) {
	j := &JWT{
		exp:  defaultExpiration,
		skew: defaultClockSkew,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}

	key, err := ParseSecret(j.secretRaw)
	if err != nil {
		return nil, err
	}
	j.key = key
	j.secretRaw = ""

	return j, nil
}

// ParseSecret converts a configured secret into signing key bytes.
func ParseSecret(raw string) ([]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptySecret
	}

	var key []byte
	if len(raw) >= len(base64SecretPrefix) && strings.EqualFold(raw[:len(base64SecretPrefix)], base64SecretPrefix) {
		decoded, err := base64.StdEncoding.DecodeString(raw[len(base64SecretPrefix):])
		if err != nil {
			return nil, ErrInvalidBase64Secret
		}
		key = decoded
	} else {
		key = []byte(raw)
	}

	if len(key) < MinSecretBytes {
		return nil, fmt.Errorf("%w: %d bits, at least %d bits required", ErrSecretTooShort, len(key)*8, MinSecretBytes*8)
	}

	return key, nil
}

// Expiration returns the configured token lifetime.
func (j *JWT) Expiration() time.Duration {
	return j.exp
}

// Generate creates a signed token for the given account.
func (j *JWT) Generate(ctx context.Context, account *models.Account) (string, error) {
	now := j.now()

	email := ""
	if account.Email != nil {
		email = *account.Email
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.exp)),
			ID:        uuid.NewString(),
		},
		Name:  account.Username,
		Email: email,
		Admin: account.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.key)
}

// GetClaims parses the token string and returns its claims if the token is valid.
func (j *JWT) GetClaims(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.skew),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, err := claims.AccountID(); err != nil {
		return nil, err
	}

	return claims, nil
}

// Validate checks the token signature and expiry.
func (j *JWT) Validate(ctx context.Context, tokenString string) error {
	_, err := j.GetClaims(ctx, tokenString)
	return err
}

// GetTokenFromRequest extracts the token string from the Authorization header
func (j *JWT) GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header missing")
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taskapi/taskapi/config"
	"github.com/taskapi/taskapi/internal/store"
	"github.com/taskapi/taskapi/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultTokenTTL applies when IssueToken is called without a lifetime.
	DefaultTokenTTL = 15 * time.Minute
	// LoginTokenTTL is the lifetime of tokens handed out by Login.
	LoginTokenTTL = 30 * time.Minute
)

// ErrUnauthorized is the only error callers see when a token or credential is
// rejected, whatever the cause.
var ErrUnauthorized = errors.New("could not validate credentials")

// timingPassword is hashed once so that logins for unknown emails still pay
// for a bcrypt comparison.
const timingPassword = "taskapi-unknown-user"

// Identity is the claim carried by a session token.
type Identity struct {
	Email     string
	ExpiresAt time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// UserCheck runs after a token resolves to a user. Returning an error rejects
// the request with ErrUnauthorized.
type UserCheck func(ctx context.Context, user types.User) error

// ActiveUser accepts every resolved user.
func ActiveUser(context.Context, types.User) error {
	return nil
}

// AuthService hashes passwords and issues and verifies session tokens.
type AuthService struct {
	users      UserRepository
	secret     []byte
	tokenTTL   time.Duration
	loginTTL   time.Duration
	bcryptCost int
	timingHash []byte
	check      UserCheck
	now        func() time.Time
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithUserCheck installs the capability check run by Authenticate.
func WithUserCheck(check UserCheck) AuthOption {
	return func(s *AuthService) {
		if check != nil {
			s.check = check
		}
	}
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(users UserRepository, cfg config.AuthConfig, opts ...AuthOption) (*AuthService, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	s := &AuthService{
		users:      users,
		secret:     []byte(secret),
		tokenTTL:   cfg.TokenTTL,
		loginTTL:   cfg.LoginTokenTTL,
		bcryptCost: cost,
		check:      ActiveUser,
		now:        time.Now,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	if s.loginTTL <= 0 {
		s.loginTTL = LoginTokenTTL
	}
	for _, opt := range opts {
		opt(s)
	}

	timingHash, err := bcrypt.GenerateFromPassword([]byte(timingPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}
	s.timingHash = timingHash

	return s, nil
}

// Hash returns a salted bcrypt hash of password.
func (s *AuthService) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether plain matches hash.
func (s *AuthService) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IssueToken signs identity with an expiry of now+ttl. A non-positive ttl uses
// the configured default.
func (s *AuthService) IssueToken(identity Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.tokenTTL
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   identity.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature and expiry and returns the embedded identity.
func (s *AuthService) VerifyToken(tokenString string) (Identity, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&claims,
		func(*jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, ErrUnauthorized
	}

	return Identity{
		Email:     claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ResolveUser loads the user named by identity. An unknown email is reported
// as ErrUnauthorized.
func (s *AuthService) ResolveUser(ctx context.Context, identity Identity) (types.User, error) {
	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthorized
		}
		return types.User{}, fmt.Errorf("resolve user: %w", err)
	}
	return user, nil
}

// Authenticate turns a bearer token into the user it belongs to.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (types.User, error) {
	identity, err := s.VerifyToken(tokenString)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.ResolveUser(ctx, identity)
	if err != nil {
		return types.User{}, err
	}

	if err := s.check(ctx, user); err != nil {
		return types.User{}, ErrUnauthorized
	}
	return user, nil
}

// Login verifies credentials and issues a token valid for the login TTL.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("load user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.timingHash, []byte(password))
		return "", ErrUnauthorized
	}

	if !s.VerifyPassword(password, user.PasswordHash) {
		return "", ErrUnauthorized
	}

	return s.IssueToken(Identity{Email: user.Email}, s.loginTTL)
}

// Register creates a user with a hashed password. Duplicate emails surface as
// store.ErrConflict.
func (s *AuthService) Register(ctx context.Context, email, password string) (types.User, error) {
	hashed, err := s.Hash(password)
	if err != nil {
		return types.User{}, err
	}

	return s.users.Create(ctx, types.User{
		Email:        email,
		PasswordHash: hashed,
	})
}

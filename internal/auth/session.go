// Package auth gates the admin surface behind a password login that
// issues a signed session cookie.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel errors distinguish why a session was rejected.
var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrNoSession        = errors.New("no session")
	ErrExpiredSession   = errors.New("session expired")
	ErrInvalidSignature = errors.New("invalid session signature")
	ErrInvalidSession   = errors.New("invalid session")
)

// CookieName is the admin session cookie.
const CookieName = "crtiers_session"

// Config holds auth settings. Secret and Password have no defaults; the
// server refuses to start without them.
type Config struct {
	Secret   string        `yaml:"secret"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// SessionClaims is what goes inside the session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Service issues and verifies admin sessions.
type Service struct {
	secret   []byte
	password string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService validates the configuration and builds the session service.
func NewService(cfg *Config, logger *slog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret must be configured")
	}
	if cfg.Password == "" {
		return nil, errors.New("auth password must be configured")
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 2 * time.Hour
	}
	return &Service{
		secret:   []byte(cfg.Secret),
		password: cfg.Password,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// Login checks the admin password and returns a signed session token.
func (s *Service) Login(password string) (string, time.Time, error) {
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := time.Now()
	expires := now.Add(s.ttl)
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: "admin",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses and validates a session token.
func (s *Service) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidSession
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidSession
}

// TTL returns the session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

type contextKey struct{}

// ClaimsFromContext returns the verified session claims, if any.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*SessionClaims)
	return claims, ok
}

// Middleware rejects requests without a valid session cookie. onReject is
// called to write the 401 response in the API's envelope format.
func (s *Service) Middleware(onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CookieName)
			if err != nil {
				onReject(w, r, ErrNoSession)
				return
			}

			claims, err := s.Verify(cookie.Value)
			if err != nil {
				s.logger.Debug("session rejected", "error", err)
				onReject(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package aaa

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

var _ Sessions = &MemorySessions{}
var _ Sessions = &JWTSessions{}

// MemorySessions is a single-principal in-process session binder, suitable
// for tests, CLIs and other embeddings with one active principal.
type MemorySessions struct {
	mu       sync.RWMutex
	username string
	bound    bool
}

// NewMemorySessions returns an unbound session binder.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{}
}

func (s *MemorySessions) Current(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.bound {
		return "", ErrUnauthenticated
	}
	return s.username, nil
}

func (s *MemorySessions) Bind(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.bound = true
	return nil
}

func (s *MemorySessions) Unbind(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.bound = false
	return nil
}

// TokenReader extracts the session token from the ambient transport, e.g. a
// cookie or header. ok is false when no token is present.
type TokenReader func(ctx context.Context) (token string, ok bool)

// TokenWriter hands a freshly minted session token back to the transport.
// Unbind writes an empty token.
type TokenWriter func(ctx context.Context, token string) error

// JWTSessions binds the principal into an HS256-signed token carried by the
// hosting layer. The reader and writer hooks adapt whatever cookie or header
// plumbing the host uses.
type JWTSessions struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	read       TokenReader
	write      TokenWriter
}

// NewJWTSessions returns a JWT-backed session binder.
func NewJWTSessions(signingKey []byte, expiration time.Duration, read TokenReader, write TokenWriter) *JWTSessions {
	return &JWTSessions{
		signingKey: signingKey,
		expiration: expiration,
		read:       read,
		write:      write,
	}
}

// WithIssuer sets the iss claim on minted tokens.
func (s *JWTSessions) WithIssuer(issuer string) *JWTSessions {
	s.issuer = issuer
	return s
}

func (s *JWTSessions) Current(ctx context.Context) (string, error) {
	raw, ok := s.read(ctx)
	if !ok || raw == "" {
		return "", ErrUnauthenticated
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth)
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrUnauthenticated
	}
	if claims.Subject == "" {
		return "", ErrUnauthenticated
	}
	return claims.Subject, nil
}

func (s *JWTSessions) Bind(ctx context.Context, username string) error {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}
	return s.write(ctx, token)
}

func (s *JWTSessions) Unbind(ctx context.Context) error {
	return s.write(ctx, "")
}

// Package auth provides PIN accounts and signed session cookies.
//
// Accounts are created with a random six-digit PIN that is shown once and
// stored as a bcrypt hash. A signed-in user carries an HS256 JWT in the
// turtle_session cookie; the subject claim is the username.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/michaelbrown/turtle/internal/storage"
)

const (
	// CookieName is the session cookie.
	CookieName = "turtle_session"

	// SessionLifetime is how long a session cookie stays valid.
	SessionLifetime = 365 * 24 * time.Hour

	pinDigits = 6
	issuer    = "turtle"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or PIN")
	ErrInvalidUsername    = errors.New("username must be 1-32 letters, digits, '-' or '_'")
	ErrUnauthenticated    = errors.New("not signed in")
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Service registers and authenticates users against a store.
type Service struct {
	store  storage.Store
	secret []byte
	secure bool
	now    func() time.Time
}

type Option func(*Service)

// WithSecureCookies marks session cookies Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Service) { s.secure = secure }
}

// WithClock overrides the time source used to issue and verify tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. An empty secret is replaced by a random one, which
// invalidates sessions on restart.
func New(store storage.Store, secret string, opts ...Option) (*Service, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
	}
	s := &Service{store: store, secret: key, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GeneratePIN returns a uniformly random six-digit PIN.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}

// Register creates an account and returns its PIN. The PIN is not
// recoverable afterwards.
func (s *Service) Register(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernameRe.MatchString(username) {
		return "", ErrInvalidUsername
	}

	pin, err := GeneratePIN()
	if err != nil {
		return "", fmt.Errorf("generating PIN: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing PIN: %w", err)
	}

	account := &storage.Account{Username: username, PasswordHash: string(hash)}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return "", err
	}
	return pin, nil
}

// Login verifies a username and PIN.
func (s *Service) Login(ctx context.Context, username, pin string) error {
	account, err := s.store.GetAccount(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(pin)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Exists reports whether an account with username exists.
func (s *Service) Exists(ctx context.Context, username string) (bool, error) {
	_, err := s.store.GetAccount(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// IssueToken signs a session token for username.
func (s *Service) IssueToken(username string) (string, error) {
	now := s.now()
	claims := jwtlib.RegisteredClaims{
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(SessionLifetime)),
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates a session token and returns its username.
func (s *Service) ParseToken(token string) (string, error) {
	var claims jwtlib.RegisteredClaims
	_, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("invalid session: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("invalid session: missing subject")
	}
	return claims.Subject, nil
}

// SetSession writes a session cookie for username.
func (s *Service) SetSession(w http.ResponseWriter, username string) error {
	token, err := s.IssueToken(username)
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.now().Add(SessionLifetime),
		MaxAge:   int(SessionLifetime / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// ClearSession expires the session cookie.
func (s *Service) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Package auth implements email and password sign-in for the admin API.
// Sessions are HS256 tokens carrying a session id ("sid") that must still be
// present in a SessionStore, so signing out revokes a token before it
// expires.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUserExists         = errors.New("user already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoSession          = errors.New("no active session")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password too short")
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

// DefaultTTL is the lifetime of a session when none is configured.
const DefaultTTL = 24 * time.Hour

// User is an account allowed to use the admin API.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is an authenticated sign-in.
type Session struct {
	ID          string    `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// SessionStore keeps the sessions that have not been signed out.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// Event names a change of authentication state.
type Event string

const (
	EventSignedIn  Event = "SIGNED_IN"
	EventSignedOut Event = "SIGNED_OUT"
)

// StateChangeFunc is called on every sign-in and sign-out. session is nil
// for EventSignedOut.
type StateChangeFunc func(event Event, session *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe stops further callbacks. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Service signs users up, in and out.
type Service struct {
	users    UserStore
	sessions SessionStore
	ta       *jwtauth.JWTAuth
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	nextSub  uint64
	handlers map[uint64]StateChangeFunc
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets how long a session stays valid. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service signing tokens with secret.
func New(secret []byte, users UserStore, sessions SessionStore, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth secret is required")
	}
	if users == nil || sessions == nil {
		return nil, errors.New("user store and session store are required")
	}
	s := &Service{
		users:    users,
		sessions: sessions,
		ta:       jwtauth.New("HS256", secret, nil),
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   slog.Default(),
		handlers: make(map[uint64]StateChangeFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// JWTAuth returns the token signer and verifier.
func (s *Service) JWTAuth() *jwtauth.JWTAuth {
	return s.ta
}

// SignUp registers a user and signs them in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: should be at least %d characters", ErrWeakPassword, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("User signed up", "user_id", user.ID)
	return s.startSession(ctx, user)
}

// SignIn checks the password and starts a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user User) (*Session, error) {
	now := s.now().UTC()
	session := Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	claims := map[string]interface{}{
		"sub":   user.ID.String(),
		"email": user.Email,
		"sid":   session.ID,
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, session.ExpiresAt)
	_, token, err := s.ta.Encode(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	session.AccessToken = token

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	s.emit(EventSignedIn, &session)
	return &session, nil
}

// GetSession returns the live session for token, or ErrNoSession.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	sid, err := s.sessionID(token)
	if err != nil {
		return nil, ErrNoSession
	}
	return s.lookup(ctx, sid, token)
}

// lookup loads the stored session sid and checks it has not expired.
func (s *Service) lookup(ctx context.Context, sid, token string) (*Session, error) {
	session, err := s.sessions.GetSession(ctx, sid)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrNoSession
	} else if err != nil {
		return nil, err
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, ErrNoSession
	}
	session.AccessToken = token
	return &session, nil
}

// SignOut revokes the session behind token. Signing out without a valid
// session is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sid, err := s.sessionID(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.emit(EventSignedOut, nil)
	return nil
}

// sessionID verifies the token signature and expiry and returns its sid.
func (s *Service) sessionID(token string) (string, error) {
	t, err := s.ta.Decode(token)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", ErrNoSession
	}
	if exp := t.Expiration(); !exp.IsZero() && !s.now().Before(exp) {
		return "", ErrNoSession
	}
	sid, ok := t.PrivateClaims()["sid"].(string)
	if !ok || sid == "" {
		return "", ErrNoSession
	}
	return sid, nil
}

// OnAuthStateChange registers fn for sign-in and sign-out events.
func (s *Service) OnAuthStateChange(fn StateChangeFunc) *Subscription {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.handlers[id] = fn
	s.mu.Unlock()

	return &Subscription{cancel: func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}}
}

func (s *Service) emit(event Event, session *Session) {
	s.mu.RLock()
	handlers := make([]StateChangeFunc, 0, len(s.handlers))
	for _, fn := range s.handlers {
		handlers = append(handlers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range handlers {
		var copied *Session
		if session != nil {
			c := *session
			copied = &c
		}
		fn(event, copied)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"booksys/internal/domain"
	"booksys/internal/metrics"
	"booksys/internal/repository"
)

// PasswordHasher hashes and verifies plaintext passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// RegisterInput is the payload accepted by Register
type RegisterInput struct {
	Username string        `json:"username"`
	Password string        `json:"password"`
	Nickname string        `json:"nickname"`
	Gender   domain.Gender `json:"gender"`
	Age      int           `json:"age"`
}

// AccountService manages users and login sessions
type AccountService struct {
	users    repository.UserStore
	sessions repository.SessionStore
	hasher   PasswordHasher
	eventBus *EventBus
	log      logrus.FieldLogger

	sessionTTL time.Duration
	now        func() time.Time
}

// AccountOption configures an AccountService
type AccountOption func(*AccountService)

// WithSessionTTL sets how long new sessions stay valid
func WithSessionTTL(ttl time.Duration) AccountOption {
	return func(s *AccountService) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithClock replaces the wall clock, for tests
func WithClock(now func() time.Time) AccountOption {
	return func(s *AccountService) {
		s.now = now
	}
}

// WithAccountLogger sets the service logger
func WithAccountLogger(l logrus.FieldLogger) AccountOption {
	return func(s *AccountService) {
		s.log = l
	}
}

// NewAccountService creates a new account service
func NewAccountService(users repository.UserStore, sessions repository.SessionStore, hasher PasswordHasher, eventBus *EventBus, opts ...AccountOption) *AccountService {
	s := &AccountService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		eventBus:   eventBus,
		log:        logrus.StandardLogger(),
		sessionTTL: domain.DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionTTL returns the lifetime given to new sessions
func (s *AccountService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Register validates and stores a new user
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	user := &domain.User{
		ID:       uuid.NewString(),
		Username: in.Username,
		Nickname: in.Nickname,
		Gender:   in.Gender,
		Age:      in.Age,
	}
	user.Normalize()
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s: %w", user.Username, domain.ErrConflict)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.CreatedAt = s.now()

	// the unique index still catches a concurrent registration
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	s.eventBus.Publish(Event{
		Type:    EventUserRegistered,
		OwnerID: user.ID,
		Payload: map[string]string{"user_id": user.ID},
	})

	return user, nil
}

// Login checks credentials and opens a new session
func (s *AccountService) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	session, err := s.login(ctx, username, password)
	metrics.Logins.WithLabelValues(metrics.Outcome(err)).Inc()
	return session, err
}

func (s *AccountService) login(ctx context.Context, username, password string) (*domain.Session, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type:    EventSessionOpened,
		OwnerID: user.ID,
		Payload: map[string]string{"user_id": user.ID},
	})

	return session, nil
}

// Authenticate resolves a session ID to its session. Expired sessions are
// removed on sight.
func (s *AccountService) Authenticate(ctx context.Context, sessionID string) (*domain.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, domain.ErrSessionInvalid
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionInvalid
	}

	if session.Expired(s.now()) {
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.log.WithError(err).WithField("session_id", sessionID).Warn("failed to delete expired session")
		}
		return nil, domain.ErrSessionInvalid
	}

	return session, nil
}

// Logout ends a session
func (s *AccountService) Logout(ctx context.Context, session *domain.Session) error {
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		return err
	}

	s.eventBus.Publish(Event{
		Type:    EventSessionClosed,
		OwnerID: session.UserID,
		Payload: map[string]string{"user_id": session.UserID},
	})

	return nil
}

// Me returns the user a session belongs to
func (s *AccountService) Me(ctx context.Context, session *domain.Session) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", session.UserID, domain.ErrNotFound)
	}
	return user, nil
}

// PruneExpiredSessions deletes every expired session and reports how many
// were removed
func (s *AccountService) PruneExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsPruned.Add(float64(n))
		s.log.WithField("count", n).Debug("pruned expired sessions")
	}
	return n, nil
}

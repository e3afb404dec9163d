package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradepost-erp/tradepost/internal/shared"
)

const sessionKeyPrefix = "auth:session:"

// ErrSessionNotFound indicates an unknown or expired token.
var ErrSessionNotFound = errors.New("auth: session not found")

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	sessions   *redis.Client
	sessionTTL time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *redis.Client, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &Service{repo: repo, sessions: sessions, sessionTTL: sessionTTL}
}

// Authenticate validates email/password credentials. Hash comparison runs
// even for unknown accounts so response timing does not reveal which emails
// exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0XnEGxx1xXtLPrkzGwlDcrYJpVm"), []byte(password))
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// RegisterSession issues a token and stores session state in Redis.
func (s *Service) RegisterSession(ctx context.Context, user *User) (Session, error) {
	session := Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.Set(ctx, sessionKeyPrefix+session.Token, raw, s.sessionTTL).Err(); err != nil {
		return Session{}, err
	}
	return session, nil
}

// LookupSession resolves a token back to its session state.
func (s *Service) LookupSession(ctx context.Context, token string) (Session, error) {
	raw, err := s.sessions.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// RemoveSession invalidates a token. Unknown tokens are not an error.
func (s *Service) RemoveSession(ctx context.Context, token string) error {
	return s.sessions.Del(ctx, sessionKeyPrefix+token).Err()
}

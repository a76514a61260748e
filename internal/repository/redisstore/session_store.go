// Package redisstore keeps sessions and user profiles in Redis.
package redisstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bruhbug-service/internal/entity"
)

// SessionStore resolves bearer tokens to users. Session keys expire with the
// session; profiles are kept without TTL so the worker can snapshot them later.
type SessionStore struct {
	client        redis.UniversalClient
	sessionPrefix string
	profilePrefix string
}

func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "bruhbug:"
	}
	return &SessionStore{
		client:        client,
		sessionPrefix: prefix + "session:",
		profilePrefix: prefix + "profile:",
	}
}

// NewToken returns a random 32-byte hex token.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *SessionStore) Save(ctx context.Context, sess entity.Session) error {
	if sess.Token == "" {
		return errors.New("session token cannot be empty")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.sessionPrefix+sess.Token, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, token string) (entity.Session, error) {
	if token == "" {
		return entity.Session{}, entity.ErrNotFound
	}

	data, err := s.client.Get(ctx, s.sessionPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.Session{}, entity.ErrNotFound
		}
		return entity.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess entity.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return entity.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		if err := s.Delete(ctx, token); err != nil {
			return entity.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return entity.Session{}, entity.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.sessionPrefix+token).Err()
}

func (s *SessionStore) SaveProfile(ctx context.Context, user entity.User) error {
	if user.ID == "" {
		return errors.New("user id cannot be empty")
	}
	data, err := json.Marshal(user.Prefs)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.client.Set(ctx, s.profilePrefix+user.ID, data, 0).Err()
}

// Profile returns the stored preferences for userID, or ErrNotFound.
func (s *SessionStore) Profile(ctx context.Context, userID string) (entity.Preferences, error) {
	data, err := s.client.Get(ctx, s.profilePrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.Preferences{}, entity.ErrNotFound
		}
		return entity.Preferences{}, fmt.Errorf("redis get: %w", err)
	}
	var prefs entity.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return entity.Preferences{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return prefs, nil
}

// CurrentUser resolves a token into the user it belongs to.
// A missing profile is not an error: the user gets empty preferences.
func (s *SessionStore) CurrentUser(ctx context.Context, token string) (*entity.User, error) {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	prefs, err := s.Profile(ctx, sess.UserID)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	return &entity.User{ID: sess.UserID, Prefs: prefs}, nil
}

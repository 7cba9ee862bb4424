package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

// Keys of the two persisted session entries.
const (
	TokenKey = "token"
	UserKey  = "currentUser"
)

// PersistedSession is what Load found in storage. Empty strings mean the
// entry is absent. RawUser is left undecoded: a corrupt record is the
// caller's decision.
type PersistedSession struct {
	Token   string
	RawUser string
}

// SessionRepository persists the bearer token and the serialized user
// record as two string entries that are written and erased together.
type SessionRepository struct {
	store Storage
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(store Storage) *SessionRepository {
	return &SessionRepository{store: store}
}

// Save writes both entries atomically.
func (r *SessionRepository) Save(ctx context.Context, token string, user *model.UserRecord) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.store.SetAll(ctx, map[string]string{TokenKey: token, UserKey: string(raw)}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveUser rewrites the user entry only.
func (r *SessionRepository) SaveUser(ctx context.Context, user *model.UserRecord) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := r.store.Set(ctx, UserKey, string(raw)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Load reads both entries.
func (r *SessionRepository) Load(ctx context.Context) (PersistedSession, error) {
	var ps PersistedSession

	token, _, err := r.store.Get(ctx, TokenKey)
	if err != nil {
		return ps, fmt.Errorf("load token: %w", err)
	}
	user, _, err := r.store.Get(ctx, UserKey)
	if err != nil {
		return ps, fmt.Errorf("load user: %w", err)
	}

	ps.Token = token
	ps.RawUser = user
	return ps, nil
}

// Clear erases both entries.
func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, TokenKey, UserKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

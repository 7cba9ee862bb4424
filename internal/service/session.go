package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/gateway"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/repository"
)

// SessionState is a copy of the session as seen by the presentation layer.
type SessionState struct {
	HasToken       bool              `json:"hasToken"`
	User           *model.UserRecord `json:"user,omitempty"`
	AuthInProgress bool              `json:"authInProgress"`
	LastError      string            `json:"lastError,omitempty"`
}

// RestoreOutcome says what Restore found in storage.
type RestoreOutcome int

const (
	// RestoredNone means no usable session was persisted.
	RestoredNone RestoreOutcome = iota
	// RestoredPartial means a token was found without a user record.
	RestoredPartial
	// RestoredFull means token and user were both restored.
	RestoredFull
)

func (o RestoreOutcome) String() string {
	switch o {
	case RestoredPartial:
		return "partial"
	case RestoredFull:
		return "full"
	default:
		return "none"
	}
}

// SessionStore owns the bearer token, the current user record and the
// shared error slot. It mirrors the session into durable storage.
type SessionStore struct {
	api      API
	repo     *repository.SessionRepository
	log      *slog.Logger
	metrics  *metrics.Recorder
	notifier Notifier
	onChange func()
	legacy   bool

	mu         sync.Mutex
	token      string
	user       *model.UserRecord
	authCalls  int
	lastError  string
	generation uint64
	hooks      []func()
}

// NewSessionStore constructs an empty SessionStore. Call Restore to load a
// persisted session.
func NewSessionStore(api API, repo *repository.SessionRepository, opts Options) *SessionStore {
	opts = opts.withDefaults()
	return &SessionStore{
		api:      api,
		repo:     repo,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		onChange: opts.OnChange,
		legacy:   opts.LegacyAuthHeuristic,
	}
}

// OnTeardown registers fn to run on every Logout, after the session is
// cleared and before storage is erased.
func (s *SessionStore) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// State returns a copy of the session.
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		HasToken:       s.token != "",
		User:           copyUser(s.user),
		AuthInProgress: s.authCalls > 0,
		LastError:      s.lastError,
	}
}

// Generation increases with every teardown.
func (s *SessionStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *SessionStore) credentials() (token string, user *model.UserRecord, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, copyUser(s.user), s.generation
}

// Login exchanges credentials for a session and persists it. Exactly one of
// a populated session or a recorded error holds afterwards. A session that
// is still active when the new one arrives is torn down first, so nothing
// the previous account loaded survives into the new one.
func (s *SessionStore) Login(ctx context.Context, email, password string) bool {
	const op = "service.SessionStore.Login"
	log := s.log.With(slog.String("op", op))

	creds := model.Credentials{Email: strings.TrimSpace(email), Password: password}
	s.beginAuth()
	defer s.endAuth()

	if err := model.Validate(creds); err != nil {
		s.record(op, err)
		return false
	}
	gen := s.Generation()

	raw, err := s.api.Request(ctx, http.MethodPost, "/auth/login", creds, "")
	if err != nil {
		s.record(op, err)
		return false
	}
	resp, err := gateway.Decode[model.LoginResponse](raw)
	if err == nil && (resp.Token == "" || resp.User == nil) {
		err = errors.New("login response is missing the token or the user")
	}
	if err != nil {
		s.record(op, err)
		return false
	}

	s.mu.Lock()
	raced := s.generation != gen
	replacing := s.token != "" || s.user != nil
	s.mu.Unlock()
	if raced {
		log.Warn("discarding login that raced a logout")
		return false
	}
	if replacing {
		log.Info("replacing the active session")
		gen = s.teardown(ctx, ReasonSessionReplaced)
	}

	// Persist first so memory never holds a session storage does not.
	if err := s.repo.Save(ctx, resp.Token, resp.User); err != nil {
		s.record(op, err)
		return false
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		log.Warn("discarding login that raced a logout")
		s.clearStorage(ctx)
		return false
	}
	s.token = resp.Token
	s.user = resp.User
	s.mu.Unlock()

	log.Info("logged in",
		slog.Int64("user_id", resp.User.ID),
		slog.String("role", string(resp.User.Role)),
		slog.Bool("force_password_change", resp.User.ForcePasswordChange))
	s.onChange()
	return true
}

// Register creates an account. It never establishes a session.
func (s *SessionStore) Register(ctx context.Context, email, password string, role model.Role) bool {
	const op = "service.SessionStore.Register"

	reg := model.Registration{Email: strings.TrimSpace(email), Password: password, Role: role}
	s.beginAuth()
	defer s.endAuth()

	if err := model.Validate(reg); err != nil {
		s.record(op, err)
		s.notify(LevelError, op, "Registration failed: "+err.Error())
		return false
	}

	raw, err := s.api.Request(ctx, http.MethodPost, "/auth/register", reg, "")
	if err != nil {
		s.record(op, err)
		s.notify(LevelError, op, "Registration failed: "+err.Error())
		return false
	}

	msg := "Registration successful. Wait for approval, or sign in if your account is already active."
	if resp, err := gateway.Decode[model.ErrorResponse](raw); err == nil && resp.Message != "" {
		msg = resp.Message
	}
	s.log.Info("registered", slog.String("op", op), slog.String("role", string(role)))
	s.notify(LevelInfo, op, msg)
	return true
}

// ChangePassword sets a new password and clears the forced-change flag.
// It returns false without recording an error when no session is active.
func (s *SessionStore) ChangePassword(ctx context.Context, newPassword string) bool {
	const op = "service.SessionStore.ChangePassword"

	token, user, gen := s.credentials()
	if token == "" || user == nil {
		return false
	}

	s.beginAuth()
	defer s.endAuth()

	req := model.PasswordChange{NewPassword: newPassword}
	if err := model.Validate(req); err != nil {
		s.record(op, err)
		s.notify(LevelError, op, "Password change failed: "+err.Error())
		return false
	}

	if _, err := s.api.Request(ctx, http.MethodPost, "/auth/change-password", req, token); err != nil {
		s.notify(LevelError, op, "Password change failed: "+err.Error())
		s.fail(ctx, op, gen, err)
		return false
	}

	user.ForcePasswordChange = false
	if s.Generation() != gen {
		return false
	}
	if err := s.repo.SaveUser(ctx, user); err != nil {
		s.record(op, err)
		return false
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return false
	}
	s.user = user
	s.mu.Unlock()

	s.log.Info("password changed", slog.String("op", op), slog.Int64("user_id", user.ID))
	s.notify(LevelInfo, op, "Your password has been changed.")
	s.onChange()
	return true
}

// Logout tears the session down unconditionally: token, user and error are
// cleared, teardown hooks run, and the persisted entries are erased. It is
// the single recovery path for authorization failures.
func (s *SessionStore) Logout(ctx context.Context, reason string) {
	s.teardown(ctx, reason)
}

// teardown clears the session and returns the generation it opened.
func (s *SessionStore) teardown(ctx context.Context, reason string) uint64 {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.lastError = ""
	s.generation++
	gen := s.generation
	hooks := append([]func(){}, s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
	s.clearStorage(ctx)

	s.metrics.ObserveTeardown(reason)
	s.log.Info("session torn down", slog.String("reason", reason))
	s.onChange()
	return gen
}

// Restore loads a persisted session without a network round trip. A token
// without a user record gives a partial session. A user record that does not
// decode is a *ParseError and tears the session down. Storage read failures
// are returned as is and leave the session empty.
func (s *SessionStore) Restore(ctx context.Context) (RestoreOutcome, error) {
	const op = "service.SessionStore.Restore"
	log := s.log.With(slog.String("op", op))

	ps, err := s.repo.Load(ctx)
	if err != nil {
		return RestoredNone, err
	}

	switch {
	case ps.Token == "" && ps.RawUser == "":
		return RestoredNone, nil

	case ps.Token == "":
		log.Warn("erasing persisted user without a token")
		s.clearStorage(ctx)
		return RestoredNone, nil

	case ps.RawUser == "":
		s.mu.Lock()
		s.token = ps.Token
		s.user = nil
		s.mu.Unlock()
		log.Info("restored token without a user record")
		s.onChange()
		return RestoredPartial, nil
	}

	user, err := decodeUser(ps.RawUser)
	if err != nil {
		perr := &ParseError{Key: repository.UserKey, Err: err}
		log.Error("persisted session is corrupt", logging.Err(perr))
		s.Logout(ctx, ReasonCorruptSession)
		return RestoredNone, perr
	}

	s.mu.Lock()
	s.token = ps.Token
	s.user = user
	s.mu.Unlock()
	log.Info("restored session", slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))
	s.onChange()
	return RestoredFull, nil
}

// ClearError empties the shared error slot.
func (s *SessionStore) ClearError() {
	s.mu.Lock()
	changed := s.lastError != ""
	s.lastError = ""
	s.mu.Unlock()
	if changed {
		s.onChange()
	}
}

// ─── Shared failure handling ──────────────────────────────────────────────────

// record stores err in the shared error slot.
func (s *SessionStore) record(op string, err error) {
	s.log.Error("operation failed", slog.String("op", op), logging.Err(err))
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
	s.onChange()
}

// fail records err and tears the session down when err is an authorization
// failure. Errors of a session that has already been torn down are dropped.
func (s *SessionStore) fail(ctx context.Context, op string, gen uint64, err error) {
	if errors.Is(err, errStaleSession) || s.Generation() != gen {
		s.log.Debug("dropping result of a closed session", slog.String("op", op), logging.Err(err))
		return
	}
	s.record(op, err)
	if s.authFailure(err) {
		s.notify(LevelWarn, op, "Session ended: "+err.Error())
		s.Logout(ctx, ReasonAuthFailure)
	}
}

func (s *SessionStore) authFailure(err error) bool {
	if gateway.IsAuthFailure(err) {
		return true
	}
	return s.legacy && gateway.MentionsAuthFailure(err.Error())
}

func (s *SessionStore) clearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func (s *SessionStore) beginAuth() {
	s.mu.Lock()
	s.authCalls++
	s.lastError = ""
	s.mu.Unlock()
	s.onChange()
}

func (s *SessionStore) endAuth() {
	s.mu.Lock()
	s.authCalls--
	s.mu.Unlock()
	s.onChange()
}

func (s *SessionStore) notify(level Level, op, msg string) {
	s.notifier.Notify(Notice{Level: level, Op: op, Message: msg})
}

// clearStorage erases the persisted entries even when ctx is already done.
func (s *SessionStore) clearStorage(ctx context.Context) {
	if err := s.repo.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.Error("failed to erase persisted session", logging.Err(err))
	}
}

func decodeUser(raw string) (*model.UserRecord, error) {
	var user model.UserRecord
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	if user.ID == 0 && user.Email == "" {
		return nil, errors.New("user record is empty")
	}
	return &user, nil
}

func copyUser(u *model.UserRecord) *model.UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

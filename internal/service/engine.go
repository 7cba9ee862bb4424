package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/navigation"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/repository"
)

// Snapshot is the whole client state handed to subscribers.
type Snapshot struct {
	View                navigation.View      `json:"view"`
	Authenticated       bool                 `json:"authenticated"`
	User                *model.UserRecord    `json:"user"`
	AuthInProgress      bool                 `json:"authInProgress"`
	PageActionLoading   bool                 `json:"pageActionLoading"`
	InitialLoadInFlight bool                 `json:"initialLoadInFlight"`
	LastError           string               `json:"lastError,omitempty"`
	Events              []model.Event        `json:"events"`
	Announcements       []model.Announcement `json:"announcements"`
	Cart                []model.CartItem     `json:"cart"`
	CartTotal           float64              `json:"cartTotal"`
	PendingUsers        []model.PendingUser  `json:"pendingUsers"`
}

// Config wires an Engine.
type Config struct {
	API      API
	Sessions *repository.SessionRepository
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Notifier Notifier
	// LegacyAuthHeuristic, see Options.
	LegacyAuthHeuristic bool
}

// Engine is the presentation boundary: it owns the SessionStore and the
// Synchronizer, re-runs the navigation reducer after every state change and
// fans snapshots out to subscribers.
//
// Synchronizer operations are promoted as is; session operations are
// wrapped because they trigger follow-up loads and navigation.
type Engine struct {
	*Synchronizer
	session *SessionStore
	log     *slog.Logger

	// resolveMu serialises reading the reducer input and storing its result,
	// so a resolution never overwrites a navigation that started after it.
	resolveMu sync.Mutex

	mu        sync.Mutex
	requested navigation.Page
	view      navigation.View
	subs      map[int]func(Snapshot)
	nextSub   int
}

// NewEngine wires a SessionStore and a Synchronizer around cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		log:       cfg.Logger,
		requested: navigation.Home,
		view:      navigation.View{Page: navigation.Home},
		subs:      make(map[int]func(Snapshot)),
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	opts := Options{
		Logger:              e.log,
		Metrics:             cfg.Metrics,
		Notifier:            cfg.Notifier,
		OnChange:            e.refresh,
		LegacyAuthHeuristic: cfg.LegacyAuthHeuristic,
	}
	e.session = NewSessionStore(cfg.API, cfg.Sessions, opts)
	e.Synchronizer = NewSynchronizer(cfg.API, e.session, opts)
	e.session.OnTeardown(func() {
		e.resolveMu.Lock()
		e.mu.Lock()
		e.requested = navigation.Home
		e.mu.Unlock()
		e.resolveMu.Unlock()
	})
	return e
}

// Session exposes the underlying SessionStore.
func (e *Engine) Session() *SessionStore {
	return e.session
}

// Start restores a persisted session. A full session gets its initial load;
// a token without a user is validated with an events fetch and, if the
// server accepts it, the login page is shown so the user can identify.
// Only storage read failures are returned.
func (e *Engine) Start(ctx context.Context) error {
	outcome, err := e.session.Restore(ctx)
	var perr *ParseError
	if errors.As(err, &perr) {
		// Already torn down.
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	e.log.Info("session restore finished", slog.String("outcome", outcome.String()))

	switch outcome {
	case RestoredFull:
		e.FetchInitialData(ctx)
	case RestoredPartial:
		if e.FetchEvents(ctx) && e.session.State().HasToken {
			e.Navigate(navigation.Login)
		}
	}
	return nil
}

// Subscribe registers fn for every later state change and calls it once
// with the current snapshot. Callbacks may run concurrently.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	fn(e.Snapshot())
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	sess := e.session.State()
	cols := e.Collections()

	e.mu.Lock()
	view := e.view
	e.mu.Unlock()

	return Snapshot{
		View:                view,
		Authenticated:       sess.HasToken,
		User:                sess.User,
		AuthInProgress:      sess.AuthInProgress,
		PageActionLoading:   cols.PageActionLoading,
		InitialLoadInFlight: cols.InitialLoadInFlight,
		LastError:           sess.LastError,
		Events:              cols.Events,
		Announcements:       cols.Announcements,
		Cart:                cols.Cart,
		CartTotal:           model.CartTotal(cols.Cart),
		PendingUsers:        cols.PendingUsers,
	}
}

// Navigate requests page. Restricted pages without a session become the
// login page; the reducer then settles the final view.
func (e *Engine) Navigate(page navigation.Page) navigation.View {
	e.resolveMu.Lock()
	in := e.input()
	e.mu.Lock()
	e.requested = navigation.Guard(in, page)
	e.mu.Unlock()
	view := e.resolve()
	e.resolveMu.Unlock()

	e.publish()
	return view
}

// Login signs in and starts the initial load.
func (e *Engine) Login(ctx context.Context, email, password string) bool {
	if !e.session.Login(ctx, email, password) {
		return false
	}
	e.FetchInitialData(ctx)
	return true
}

// Register creates an account and shows the login page on success.
func (e *Engine) Register(ctx context.Context, email, password string, role model.Role) bool {
	if !e.session.Register(ctx, email, password, role) {
		return false
	}
	e.Navigate(navigation.Login)
	return true
}

// ChangePassword sets a new password; navigation advances on its own once
// the forced-change flag is cleared.
func (e *Engine) ChangePassword(ctx context.Context, newPassword string) bool {
	return e.session.ChangePassword(ctx, newPassword)
}

// Logout ends the session at the user's request.
func (e *Engine) Logout(ctx context.Context) {
	e.session.Logout(ctx, ReasonUserLogout)
}

// ClearError empties the shared error slot.
func (e *Engine) ClearError() {
	e.session.ClearError()
}

func (e *Engine) input() navigation.Input {
	sess := e.session.State()
	cols := e.Collections()

	e.mu.Lock()
	defer e.mu.Unlock()
	in := navigation.Input{
		HasToken:            sess.HasToken,
		HasUser:             sess.User != nil,
		InitialLoadInFlight: cols.InitialLoadInFlight,
		Requested:           e.requested,
	}
	if sess.User != nil {
		in.Role = sess.User.Role
		in.ForcePasswordChange = sess.User.ForcePasswordChange
	}
	return in
}

// refresh re-runs the reducer and publishes a snapshot. It is the OnChange
// callback of both components.
func (e *Engine) refresh() {
	e.resolveMu.Lock()
	e.resolve()
	e.resolveMu.Unlock()

	e.publish()
}

// resolve runs the reducer over the current input and stores the view.
// Callers hold resolveMu.
func (e *Engine) resolve() navigation.View {
	view := navigation.Resolve(e.input())

	e.mu.Lock()
	defer e.mu.Unlock()
	if view.Page != e.view.Page {
		e.log.Debug("navigation", slog.String("from", string(e.view.Page)), slog.String("to", string(view.Page)))
	}
	e.view = view
	e.requested = view.Page
	return view
}

func (e *Engine) publish() {
	e.mu.Lock()
	subs := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	if len(subs) == 0 {
		return
	}
	snap := e.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

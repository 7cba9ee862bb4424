package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/gateway"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

// Collections is a copy of the synchronizer state.
type Collections struct {
	Events              []model.Event        `json:"events"`
	Announcements       []model.Announcement `json:"announcements"`
	Cart                []model.CartItem     `json:"cart"`
	PendingUsers        []model.PendingUser  `json:"pendingUsers"`
	PageActionLoading   bool                 `json:"pageActionLoading"`
	InitialLoadInFlight bool                 `json:"initialLoadInFlight"`
}

// Synchronizer owns the four server-backed collections. Every list is
// replaced or patched only from server responses; events stay sorted by
// date and announcements newest first.
type Synchronizer struct {
	api      API
	session  *SessionStore
	log      *slog.Logger
	metrics  *metrics.Recorder
	notifier Notifier
	onChange func()

	mu            sync.Mutex
	events        []model.Event
	announcements []model.Announcement
	cart          []model.CartItem
	pending       []model.PendingUser
	inFlight      int
	initialLoad   bool
}

// NewSynchronizer constructs a Synchronizer and registers its reset as a
// teardown hook of session.
func NewSynchronizer(api API, session *SessionStore, opts Options) *Synchronizer {
	opts = opts.withDefaults()
	s := &Synchronizer{
		api:      api,
		session:  session,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		onChange: opts.OnChange,
	}
	session.OnTeardown(s.reset)
	return s
}

// Collections returns a copy of every list and the loading flags.
func (s *Synchronizer) Collections() Collections {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Collections{
		Events:              append([]model.Event{}, s.events...),
		Announcements:       append([]model.Announcement{}, s.announcements...),
		Cart:                append([]model.CartItem{}, s.cart...),
		PendingUsers:        append([]model.PendingUser{}, s.pending...),
		PageActionLoading:   s.inFlight > 0,
		InitialLoadInFlight: s.initialLoad,
	}
}

// CartTotal sums price × quantity over the cart.
func (s *Synchronizer) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CartTotal(s.cart)
}

func (s *Synchronizer) reset() {
	s.mu.Lock()
	s.events = nil
	s.announcements = nil
	s.cart = nil
	s.pending = nil
	s.mu.Unlock()
}

// ─── Bulk load ────────────────────────────────────────────────────────────────

// FetchInitialData loads events, announcements and the cart, plus pending
// users for admins, concurrently. Either every list is replaced or none is.
func (s *Synchronizer) FetchInitialData(ctx context.Context) bool {
	const op = "service.Synchronizer.FetchInitialData"

	token, user, gen := s.session.credentials()
	if token == "" || user == nil {
		s.log.Debug("skipping initial load without a session", slog.String("op", op))
		return false
	}

	s.setInitialLoad(true)
	defer s.setInitialLoad(false)
	s.session.clearError()

	var (
		events        []model.Event
		announcements []model.Announcement
		cart          []model.CartItem
		pending       []model.PendingUser
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		events, err = s.getEvents(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		announcements, err = s.getAnnouncements(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		cart, err = s.getCart(gctx, token)
		return err
	})
	if user.IsAdmin() {
		g.Go(func() (err error) {
			pending, err = s.getPending(gctx, token)
			return err
		})
	}

	err := g.Wait()
	if err == nil {
		err = s.commit(gen, func() {
			s.events = events
			s.announcements = announcements
			s.cart = cart
			s.pending = pending
		})
	}
	s.metrics.ObserveSync(op, err == nil)
	if err != nil {
		s.session.fail(ctx, op, gen, err)
		return false
	}

	s.log.Info("initial data loaded",
		slog.Int("events", len(events)),
		slog.Int("announcements", len(announcements)),
		slog.Int("cart_items", len(cart)),
		slog.Int("pending_users", len(pending)))
	return true
}

// ─── Refetches ────────────────────────────────────────────────────────────────

// FetchEvents replaces the event list.
func (s *Synchronizer) FetchEvents(ctx context.Context) bool {
	const op = "service.Synchronizer.FetchEvents"
	return s.run(ctx, call{op: op}, func(token string, commit committer) error {
		events, err := s.getEvents(ctx, token)
		if err != nil {
			return err
		}
		return commit(func() { s.events = events })
	})
}

// FetchAnnouncements replaces the announcement list.
func (s *Synchronizer) FetchAnnouncements(ctx context.Context) bool {
	const op = "service.Synchronizer.FetchAnnouncements"
	return s.run(ctx, call{op: op}, func(token string, commit committer) error {
		list, err := s.getAnnouncements(ctx, token)
		if err != nil {
			return err
		}
		return commit(func() { s.announcements = list })
	})
}

// FetchCart replaces the cart.
func (s *Synchronizer) FetchCart(ctx context.Context) bool {
	const op = "service.Synchronizer.FetchCart"
	return s.run(ctx, call{op: op}, func(token string, commit committer) error {
		cart, err := s.getCart(ctx, token)
		if err != nil {
			return err
		}
		return commit(func() { s.cart = cart })
	})
}

// FetchPendingUsers replaces the pending-user list. Admins only.
func (s *Synchronizer) FetchPendingUsers(ctx context.Context) bool {
	const op = "service.Synchronizer.FetchPendingUsers"
	return s.run(ctx, call{op: op, admin: true}, func(token string, commit committer) error {
		pending, err := s.getPending(ctx, token)
		if err != nil {
			return err
		}
		return commit(func() { s.pending = pending })
	})
}

// ─── Events ───────────────────────────────────────────────────────────────────

// AddEvent creates an event and inserts the server's copy in date order.
func (s *Synchronizer) AddEvent(ctx context.Context, in model.EventInput) bool {
	const op = "service.Synchronizer.AddEvent"
	c := call{op: op, admin: true, mutation: true, failure: "Adding the event failed", success: "Event added."}
	return s.run(ctx, c, func(token string, commit committer) error {
		if err := model.Validate(in); err != nil {
			return err
		}
		created, err := request[model.Event](ctx, s.api, http.MethodPost, "/admin/events", in, token)
		if err != nil {
			return err
		}
		s.checkQuota(created)
		return commit(func() {
			s.events = append(s.events, created)
			model.SortEvents(s.events)
		})
	})
}

// UpdateEvent replaces the event with the server's copy, then refetches the
// cart, whose rows carry event titles and prices.
func (s *Synchronizer) UpdateEvent(ctx context.Context, id int64, in model.EventInput) bool {
	const op = "service.Synchronizer.UpdateEvent"
	c := call{op: op, admin: true, mutation: true, failure: "Updating the event failed", success: "Event updated."}
	ok := s.run(ctx, c, func(token string, commit committer) error {
		if err := model.Validate(in); err != nil {
			return err
		}
		updated, err := request[model.Event](ctx, s.api, http.MethodPut, fmt.Sprintf("/admin/events/%d", id), in, token)
		if err != nil {
			return err
		}
		s.checkQuota(updated)
		return commit(func() {
			for i := range s.events {
				if s.events[i].ID == id {
					s.events[i] = updated
				}
			}
			model.SortEvents(s.events)
		})
	})
	if ok {
		s.FetchCart(ctx)
	}
	return ok
}

// DeleteEvent removes the event, then refetches the cart.
func (s *Synchronizer) DeleteEvent(ctx context.Context, id int64) bool {
	const op = "service.Synchronizer.DeleteEvent"
	c := call{op: op, admin: true, mutation: true, failure: "Deleting the event failed", success: "Event deleted."}
	ok := s.run(ctx, c, func(token string, commit committer) error {
		if _, err := s.api.Request(ctx, http.MethodDelete, fmt.Sprintf("/admin/events/%d", id), nil, token); err != nil {
			return err
		}
		return commit(func() {
			s.events = removeByID(s.events, func(e model.Event) bool { return e.ID == id })
		})
	})
	if ok {
		s.FetchCart(ctx)
	}
	return ok
}

// ─── Announcements ────────────────────────────────────────────────────────────

// AddAnnouncement creates an announcement.
func (s *Synchronizer) AddAnnouncement(ctx context.Context, in model.AnnouncementInput) bool {
	const op = "service.Synchronizer.AddAnnouncement"
	c := call{op: op, admin: true, mutation: true, failure: "Adding the announcement failed", success: "Announcement added."}
	return s.run(ctx, c, func(token string, commit committer) error {
		if err := model.Validate(in); err != nil {
			return err
		}
		created, err := request[model.Announcement](ctx, s.api, http.MethodPost, "/admin/announcements", in, token)
		if err != nil {
			return err
		}
		return commit(func() {
			s.announcements = append(s.announcements, created)
			model.SortAnnouncements(s.announcements)
		})
	})
}

// UpdateAnnouncement replaces the announcement with the server's copy.
func (s *Synchronizer) UpdateAnnouncement(ctx context.Context, id int64, in model.AnnouncementInput) bool {
	const op = "service.Synchronizer.UpdateAnnouncement"
	c := call{op: op, admin: true, mutation: true, failure: "Updating the announcement failed", success: "Announcement updated."}
	return s.run(ctx, c, func(token string, commit committer) error {
		if err := model.Validate(in); err != nil {
			return err
		}
		updated, err := request[model.Announcement](ctx, s.api, http.MethodPut, fmt.Sprintf("/admin/announcements/%d", id), in, token)
		if err != nil {
			return err
		}
		return commit(func() {
			for i := range s.announcements {
				if s.announcements[i].ID == id {
					s.announcements[i] = updated
				}
			}
			model.SortAnnouncements(s.announcements)
		})
	})
}

// DeleteAnnouncement removes the announcement.
func (s *Synchronizer) DeleteAnnouncement(ctx context.Context, id int64) bool {
	const op = "service.Synchronizer.DeleteAnnouncement"
	c := call{op: op, admin: true, mutation: true, failure: "Deleting the announcement failed", success: "Announcement deleted."}
	return s.run(ctx, c, func(token string, commit committer) error {
		if _, err := s.api.Request(ctx, http.MethodDelete, fmt.Sprintf("/admin/announcements/%d", id), nil, token); err != nil {
			return err
		}
		return commit(func() {
			s.announcements = removeByID(s.announcements, func(a model.Announcement) bool { return a.ID == id })
		})
	})
}

// ─── Users ────────────────────────────────────────────────────────────────────

// ApproveUser approves a pending account and drops it from the local list.
// Approval cannot affect other pending entries, so nothing is refetched.
func (s *Synchronizer) ApproveUser(ctx context.Context, id int64) bool {
	const op = "service.Synchronizer.ApproveUser"
	c := call{op: op, admin: true, mutation: true, failure: "Approving the user failed", success: "User approved."}
	return s.run(ctx, c, func(token string, commit committer) error {
		if _, err := s.api.Request(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/approve", id), nil, token); err != nil {
			return err
		}
		return commit(func() {
			s.pending = removeByID(s.pending, func(u model.PendingUser) bool { return u.ID == id })
		})
	})
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

// AddToCart books quantity seats of event. The cart is replaced by the
// server's copy and the events are refetched so quota never drifts.
func (s *Synchronizer) AddToCart(ctx context.Context, event model.Event, quantity int) bool {
	const op = "service.Synchronizer.AddToCart"
	c := call{
		op:       op,
		needUser: true,
		mutation: true,
		failure:  "Adding to the cart failed",
		success:  fmt.Sprintf("%s (%d) added to the cart.", event.Title, quantity),
	}
	return s.run(ctx, c, func(token string, commit committer) error {
		req := model.CartAdd{EventID: event.ID, Quantity: quantity}
		if err := model.Validate(req); err != nil {
			return err
		}
		return s.mutateCart(ctx, token, commit, http.MethodPost, "/cart/add", req)
	})
}

// RemoveFromCart drops the row for eventID.
func (s *Synchronizer) RemoveFromCart(ctx context.Context, eventID int64) bool {
	const op = "service.Synchronizer.RemoveFromCart"
	c := call{op: op, needUser: true, mutation: true, failure: "Removing the item failed"}
	return s.run(ctx, c, func(token string, commit committer) error {
		return s.mutateCart(ctx, token, commit, http.MethodDelete, fmt.Sprintf("/cart/item/%d", eventID), nil)
	})
}

// UpdateCartQuantity sets the quantity of the row for eventID. A quantity
// of zero or less is a removal and is never sent as an update.
func (s *Synchronizer) UpdateCartQuantity(ctx context.Context, eventID int64, quantity int) bool {
	const op = "service.Synchronizer.UpdateCartQuantity"
	if quantity <= 0 {
		return s.RemoveFromCart(ctx, eventID)
	}
	c := call{op: op, needUser: true, mutation: true, failure: "Updating the quantity failed"}
	return s.run(ctx, c, func(token string, commit committer) error {
		return s.mutateCart(ctx, token, commit, http.MethodPut,
			fmt.Sprintf("/cart/item/%d", eventID), model.CartQuantity{Quantity: quantity})
	})
}

func (s *Synchronizer) mutateCart(ctx context.Context, token string, commit committer, method, path string, body any) error {
	cart, err := request[[]model.CartItem](ctx, s.api, method, path, body, token)
	if err != nil {
		return err
	}
	if cart == nil {
		cart = []model.CartItem{}
	}
	if err := commit(func() { s.cart = cart }); err != nil {
		return err
	}

	events, err := s.getEvents(ctx, token)
	if err != nil {
		return fmt.Errorf("refetch events after cart change: %w", err)
	}
	return commit(func() { s.events = events })
}

// ─── Plumbing ─────────────────────────────────────────────────────────────────

type committer func(apply func()) error

// call describes one synchronizer operation.
type call struct {
	op       string
	admin    bool // requires an admin user
	needUser bool // requires a resolved user, not just a token
	mutation bool // failures also go to the notifier
	failure  string
	success  string
}

// run executes fn with the loading counter held and the shared error slot
// cleared. fn reports results through commit, which drops them when the
// session was torn down in the meantime.
func (s *Synchronizer) run(ctx context.Context, c call, fn func(token string, commit committer) error) bool {
	token, user, gen := s.session.credentials()
	switch {
	case token == "":
		s.log.Debug("skipping operation without a session", slog.String("op", c.op))
		return false
	case c.admin && !user.IsAdmin():
		s.log.Debug("skipping admin operation", slog.String("op", c.op))
		if c.mutation {
			s.notify(LevelError, c.op, "You are not allowed to do this or your session has ended.")
		}
		return false
	case c.needUser && user == nil:
		s.log.Debug("skipping operation without a resolved user", slog.String("op", c.op))
		return false
	}

	s.begin()
	defer s.end()
	s.session.clearError()

	err := fn(token, func(apply func()) error { return s.commit(gen, apply) })
	s.metrics.ObserveSync(c.op, err == nil)
	if err != nil {
		if c.mutation && s.session.Generation() == gen {
			s.notify(LevelError, c.op, c.failure+": "+err.Error())
		}
		s.session.fail(ctx, c.op, gen, err)
		return false
	}

	if c.success != "" {
		s.notify(LevelInfo, c.op, c.success)
	}
	return true
}

// commit applies a result under the lock unless the session generation
// moved on, then notifies observers.
func (s *Synchronizer) commit(gen uint64, apply func()) error {
	s.mu.Lock()
	if s.session.Generation() != gen {
		s.mu.Unlock()
		return errStaleSession
	}
	apply()
	s.mu.Unlock()
	s.onChange()
	return nil
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
	s.onChange()
}

func (s *Synchronizer) end() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	s.onChange()
}

func (s *Synchronizer) setInitialLoad(v bool) {
	s.mu.Lock()
	s.initialLoad = v
	s.mu.Unlock()
	s.onChange()
}

func (s *Synchronizer) notify(level Level, op, msg string) {
	s.notifier.Notify(Notice{Level: level, Op: op, Message: msg})
}

func (s *Synchronizer) getEvents(ctx context.Context, token string) ([]model.Event, error) {
	events, err := request[[]model.Event](ctx, s.api, http.MethodGet, "/events", nil, token)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	for _, e := range events {
		s.checkQuota(e)
	}
	model.SortEvents(events)
	return events, nil
}

func (s *Synchronizer) getAnnouncements(ctx context.Context, token string) ([]model.Announcement, error) {
	list, err := request[[]model.Announcement](ctx, s.api, http.MethodGet, "/announcements", nil, token)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Announcement{}
	}
	model.SortAnnouncements(list)
	return list, nil
}

func (s *Synchronizer) getCart(ctx context.Context, token string) ([]model.CartItem, error) {
	cart, err := request[[]model.CartItem](ctx, s.api, http.MethodGet, "/cart", nil, token)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = []model.CartItem{}
	}
	return cart, nil
}

func (s *Synchronizer) getPending(ctx context.Context, token string) ([]model.PendingUser, error) {
	pending, err := request[[]model.PendingUser](ctx, s.api, http.MethodGet, "/admin/users/pending", nil, token)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []model.PendingUser{}
	}
	return pending, nil
}

// checkQuota logs server data that breaks quota ≤ initialQuota. Quota is the
// server's to compute, so the event is kept as is.
func (s *Synchronizer) checkQuota(e model.Event) {
	if !e.QuotaConsistent() {
		s.log.Warn("server sent inconsistent quota",
			slog.Int64("event_id", e.ID),
			slog.Int("quota", e.Quota),
			slog.Int("initial_quota", e.InitialQuota))
	}
}

func request[T any](ctx context.Context, api API, method, path string, body any, token string) (T, error) {
	raw, err := api.Request(ctx, method, path, body, token)
	if err != nil {
		var zero T
		return zero, err
	}
	return gateway.Decode[T](raw)
}

func removeByID[T any](list []T, match func(T) bool) []T {
	out := list[:0]
	for _, item := range list {
		if !match(item) {
			out = append(out, item)
		}
	}
	return out
}

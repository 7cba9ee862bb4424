// Package fakeapi is an in-memory implementation of the ticketing API the
// client talks to. It backs the package tests and cmd/fakeapi.
//
// Behaviour mirrors the real service closely enough for the client:
// admins are approved on registration, users wait for approval and must
// change their password on first login, cart bookings are checked against
// the remaining quota under a single lock.
package fakeapi

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

type account struct {
	user     model.UserRecord
	password string
	approved bool
}

type fault struct {
	status  int
	message string
}

// Server holds all API state behind one mutex.
type Server struct {
	mu            sync.Mutex
	nextID        int64
	accounts      map[int64]*account
	tokens        map[string]int64
	events        map[int64]*model.Event
	announcements map[int64]*model.Announcement
	carts         map[int64]map[int64]int // user id → event id → quantity
	faults        map[string]fault
	requests      []string
	now           func() time.Time
}

// New returns an empty Server.
func New() *Server {
	return &Server{
		accounts:      make(map[int64]*account),
		tokens:        make(map[string]int64),
		events:        make(map[int64]*model.Event),
		announcements: make(map[int64]*model.Announcement),
		carts:         make(map[int64]map[int64]int),
		faults:        make(map[string]fault),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handler returns the API mounted under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFaults)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/auth/change-password", s.changePassword)
			r.Get("/events", s.listEvents)
			r.Get("/announcements", s.listAnnouncements)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Post("/add", s.addToCart)
				r.Put("/item/{eventId}", s.updateCartItem)
				r.Delete("/item/{eventId}", s.removeCartItem)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/events", s.createEvent)
				r.Put("/events/{id}", s.updateEvent)
				r.Delete("/events/{id}", s.deleteEvent)
				r.Post("/announcements", s.createAnnouncement)
				r.Put("/announcements/{id}", s.updateAnnouncement)
				r.Delete("/announcements/{id}", s.deleteAnnouncement)
				r.Get("/users/pending", s.listPending)
				r.Put("/users/{id}/approve", s.approveUser)
			})
		})
	})
	return r
}

// ─── Seeding and inspection ───────────────────────────────────────────────────

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// SeedUser creates an account directly.
func (s *Server) SeedUser(email, password string, role model.Role, approved, forcePasswordChange bool) model.UserRecord {
	return s.SeedAccount(model.UserRecord{Email: email, Role: role, ForcePasswordChange: forcePasswordChange}, password, approved)
}

// SeedAccount stores u with password. A zero ID is assigned.
func (s *Server) SeedAccount(u model.UserRecord, password string, approved bool) model.UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(u, password, approved)
}

func (s *Server) addAccountLocked(u model.UserRecord, password string, approved bool) model.UserRecord {
	if u.ID == 0 {
		u.ID = s.id()
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = model.NewTimestamp(s.now())
	}
	s.accounts[u.ID] = &account{user: u, password: password, approved: approved}
	return u
}

// SeedEvent stores e. A zero ID is assigned; a zero InitialQuota is set to
// Quota.
func (s *Server) SeedEvent(e model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.id()
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	if e.InitialQuota == 0 {
		e.InitialQuota = e.Quota
	}
	s.events[e.ID] = &e
	return e
}

// SeedAnnouncement stores a.
func (s *Server) SeedAnnouncement(a model.Announcement) model.Announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = model.NewTimestamp(s.now())
	}
	s.announcements[a.ID] = &a
	return a
}

// Event returns the stored event.
func (s *Server) Event(id int64) (model.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, false
	}
	return *e, true
}

// Fail makes every later request to "METHOD /api/path" answer status with
// message, until Heal is called. path is the concrete request path.
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method+" "+path] = fault{status: status, message: message}
}

// Heal removes every injected fault.
func (s *Server) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]fault)
}

// Requests returns "METHOD /path" for every request seen.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	key := method + " " + path
	n := 0
	for _, r := range s.Requests() {
		if r == key {
			n++
		}
	}
	return n
}

// ResetRequests forgets the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// ─── Middleware ───────────────────────────────────────────────────────────────

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.faults[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeError(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		s.mu.Lock()
		userID, known := s.tokens[token]
		var user model.UserRecord
		if known {
			user = s.accounts[userID].user
		}
		s.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userFrom(r.Context()).Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (s *Server) cartLocked(userID int64) []model.CartItem {
	items := []model.CartItem{}
	for eventID, qty := range s.carts[userID] {
		e, ok := s.events[eventID]
		if !ok {
			continue
		}
		items = append(items, model.CartItem{EventID: eventID, Title: e.Title, Price: e.Price, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].EventID < items[j].EventID })
	return items
}

func (s *Server) newToken(userID int64) string {
	token := uuid.NewString()
	s.tokens[token] = userID
	return token
}

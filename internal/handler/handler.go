// Package handler contains the chi HTTP handlers of the local control API.
// They translate JSON requests into Engine intents and answer with the
// resulting state.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/navigation"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/service"
)

// Engine is the part of *service.Engine the control API drives.
type Engine interface {
	Snapshot() service.Snapshot
	Navigate(page navigation.Page) navigation.View
	ClearError()

	Login(ctx context.Context, email, password string) bool
	Register(ctx context.Context, email, password string, role model.Role) bool
	ChangePassword(ctx context.Context, newPassword string) bool
	Logout(ctx context.Context)

	FetchEvents(ctx context.Context) bool
	FetchAnnouncements(ctx context.Context) bool
	FetchCart(ctx context.Context) bool
	FetchPendingUsers(ctx context.Context) bool

	AddEvent(ctx context.Context, in model.EventInput) bool
	UpdateEvent(ctx context.Context, id int64, in model.EventInput) bool
	DeleteEvent(ctx context.Context, id int64) bool
	AddAnnouncement(ctx context.Context, in model.AnnouncementInput) bool
	UpdateAnnouncement(ctx context.Context, id int64, in model.AnnouncementInput) bool
	DeleteAnnouncement(ctx context.Context, id int64) bool
	ApproveUser(ctx context.Context, id int64) bool

	AddToCart(ctx context.Context, event model.Event, quantity int) bool
	RemoveFromCart(ctx context.Context, eventID int64) bool
	UpdateCartQuantity(ctx context.Context, eventID int64, quantity int) bool
}

var _ Engine = (*service.Engine)(nil)

// NoticeSource lists recent notices.
type NoticeSource interface {
	Recent() []service.Notice
}

// Handler holds all HTTP handlers of the control API.
type Handler struct {
	engine  Engine
	notices NoticeSource
	metrics http.Handler
	log     *slog.Logger
}

// New constructs a Handler. notices and metrics may be nil.
func New(engine Engine, notices NoticeSource, metrics http.Handler, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{engine: engine, notices: notices, metrics: metrics, log: log}
}

// Result answers every intent.
type Result struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type navigateRequest struct {
	Page string `json:"page"`
}

type cartResponse struct {
	Items []model.CartItem `json:"items"`
	Total float64          `json:"total"`
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, Result{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// result reports the outcome of an intent. A failed intent answers 422 with
// the shared error slot.
func (h *Handler) result(w http.ResponseWriter, r *http.Request, ok bool) {
	if ok {
		writeJSON(w, r, http.StatusOK, Result{OK: true})
		return
	}
	msg := h.engine.Snapshot().LastError
	if msg == "" {
		msg = "operation failed"
	}
	writeJSON(w, r, http.StatusUnprocessableEntity, Result{Error: msg})
}

// ─── State and navigation ─────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// State handles GET /state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot())
}

// Navigate handles POST /navigate
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	page, err := navigation.ParsePage(req.Page)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, h.engine.Navigate(page))
}

// Notices handles GET /notices
func (h *Handler) Notices(w http.ResponseWriter, r *http.Request) {
	notices := []service.Notice{}
	if h.notices != nil {
		notices = append(notices, h.notices.Recent()...)
	}
	writeJSON(w, r, http.StatusOK, notices)
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Login handles POST /session/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.Login(r.Context(), req.Email, req.Password))
}

// Register handles POST /session/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.Register(r.Context(), req.Email, req.Password, req.Role))
}

// ChangePassword handles POST /session/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.ChangePassword(r.Context(), req.NewPassword))
}

// Logout handles POST /session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.engine.Logout(r.Context())
	h.result(w, r, true)
}

// ClearError handles POST /session/clear-error
func (h *Handler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearError()
	h.result(w, r, true)
}

// ─── Collections ──────────────────────────────────────────────────────────────

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot().Events)
}

// RefreshEvents handles POST /events/refresh
func (h *Handler) RefreshEvents(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, h.engine.FetchEvents(r.Context()))
}

// ListAnnouncements handles GET /announcements
func (h *Handler) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot().Announcements)
}

// RefreshAnnouncements handles POST /announcements/refresh
func (h *Handler) RefreshAnnouncements(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, h.engine.FetchAnnouncements(r.Context()))
}

// GetCart handles GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Snapshot()
	writeJSON(w, r, http.StatusOK, cartResponse{Items: snap.Cart, Total: snap.CartTotal})
}

// RefreshCart handles POST /cart/refresh
func (h *Handler) RefreshCart(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, h.engine.FetchCart(r.Context()))
}

// AddToCart handles POST /cart/add
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req model.CartAdd
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// The event is only needed for the notice text; an unknown id still
	// goes to the server, which is authoritative.
	event := model.Event{ID: req.EventID}
	for _, e := range h.engine.Snapshot().Events {
		if e.ID == req.EventID {
			event = e
			break
		}
	}
	h.result(w, r, h.engine.AddToCart(r.Context(), event, req.Quantity))
}

// UpdateCartItem handles PUT /cart/item/{eventId}
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "eventId")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid event id")
		return
	}
	var req model.CartQuantity
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.UpdateCartQuantity(r.Context(), id, req.Quantity))
}

// RemoveCartItem handles DELETE /cart/item/{eventId}
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "eventId")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid event id")
		return
	}
	h.result(w, r, h.engine.RemoveFromCart(r.Context(), id))
}

// ─── Admin ────────────────────────────────────────────────────────────────────

// CreateEvent handles POST /admin/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.AddEvent(r.Context(), req))
}

// UpdateEvent handles PUT /admin/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid event id")
		return
	}
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.UpdateEvent(r.Context(), id, req))
}

// DeleteEvent handles DELETE /admin/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid event id")
		return
	}
	h.result(w, r, h.engine.DeleteEvent(r.Context(), id))
}

// CreateAnnouncement handles POST /admin/announcements
func (h *Handler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req model.AnnouncementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.AddAnnouncement(r.Context(), req))
}

// UpdateAnnouncement handles PUT /admin/announcements/{id}
func (h *Handler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid announcement id")
		return
	}
	var req model.AnnouncementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.result(w, r, h.engine.UpdateAnnouncement(r.Context(), id, req))
}

// DeleteAnnouncement handles DELETE /admin/announcements/{id}
func (h *Handler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid announcement id")
		return
	}
	h.result(w, r, h.engine.DeleteAnnouncement(r.Context(), id))
}

// ListPendingUsers handles GET /admin/users/pending
func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Snapshot().PendingUsers)
}

// RefreshPendingUsers handles POST /admin/users/pending/refresh
func (h *Handler) RefreshPendingUsers(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, h.engine.FetchPendingUsers(r.Context()))
}

// ApproveUser handles PUT /admin/users/{id}/approve
func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	h.result(w, r, h.engine.ApproveUser(r.Context(), id))
}

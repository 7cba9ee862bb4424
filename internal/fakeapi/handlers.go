package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Message: msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func withUser(ctx context.Context, u model.UserRecord) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func userFrom(ctx context.Context) model.UserRecord {
	u, _ := ctx.Value(ctxKey{}).(model.UserRecord)
	return u
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

// login handles POST /api/auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req model.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	var acc *account
	for _, a := range s.accounts {
		if a.user.Email == email {
			acc = a
			break
		}
	}
	if acc == nil || acc.password != req.Password {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	if !acc.approved {
		writeError(w, http.StatusForbidden, "Account pending approval")
		return
	}

	user := acc.user
	writeJSON(w, http.StatusOK, model.LoginResponse{Token: s.newToken(user.ID), User: &user})
}

// register handles POST /api/auth/register
// Admin accounts are approved immediately; user accounts wait for an admin
// and must change their password on first login.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req model.Registration
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	admin := req.Role == model.RoleAdmin

	s.mu.Lock()
	for _, a := range s.accounts {
		if a.user.Email == email {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "User already exists")
			return
		}
	}
	s.addAccountLocked(model.UserRecord{Email: email, Role: req.Role, ForcePasswordChange: !admin}, req.Password, admin)
	s.mu.Unlock()

	if admin {
		writeMessage(w, http.StatusCreated, "Admin account created")
		return
	}
	writeMessage(w, http.StatusCreated, "Registration successful, awaiting admin approval")
}

// changePassword handles POST /api/auth/change-password
func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordChange
	if err := decodeJSON(r, &req); err != nil || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "newPassword is required")
		return
	}

	s.mu.Lock()
	acc := s.accounts[userFrom(r.Context()).ID]
	acc.password = req.NewPassword
	acc.user.ForcePasswordChange = false
	s.mu.Unlock()

	writeMessage(w, http.StatusOK, "Password updated")
}

// ─── Events ───────────────────────────────────────────────────────────────────

// listEvents handles GET /api/events
// Events come back in id order; ordering by date is the client's job.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, *e)
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	writeJSON(w, http.StatusOK, events)
}

// createEvent handles POST /api/admin/events
func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quota < 0 || req.Price < 0 {
		writeError(w, http.StatusBadRequest, "price and quota must not be negative")
		return
	}

	e := s.SeedEvent(model.Event{
		Title:        req.Title,
		Description:  req.Description,
		Date:         req.Date,
		Location:     req.Location,
		Price:        req.Price,
		Quota:        req.Quota,
		InitialQuota: req.Quota,
	})
	writeJSON(w, http.StatusCreated, e)
}

// updateEvent handles PUT /api/admin/events/{id}
// Seats already sold are kept: the remaining quota is the new capacity minus
// what was sold, never below zero.
func (s *Server) updateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var req model.EventInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	sold := e.InitialQuota - e.Quota
	e.Title = req.Title
	e.Description = req.Description
	e.Date = req.Date
	e.Location = req.Location
	e.Price = req.Price
	e.InitialQuota = req.Quota
	e.Quota = max(req.Quota-sold, 0)
	writeJSON(w, http.StatusOK, *e)
}

// deleteEvent handles DELETE /api/admin/events/{id}
// Cart rows for the event go with it.
func (s *Server) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	delete(s.events, id)
	for _, cart := range s.carts {
		delete(cart, id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Announcements ────────────────────────────────────────────────────────────

// listAnnouncements handles GET /api/announcements
func (s *Server) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := make([]model.Announcement, 0, len(s.announcements))
	for _, a := range s.announcements {
		list = append(list, *a)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

// createAnnouncement handles POST /api/admin/announcements
func (s *Server) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req model.AnnouncementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a := s.SeedAnnouncement(model.Announcement{Title: req.Title, Content: req.Content})
	writeJSON(w, http.StatusCreated, a)
}

// updateAnnouncement handles PUT /api/admin/announcements/{id}
func (s *Server) updateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid announcement id")
		return
	}
	var req model.AnnouncementInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.announcements[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Announcement not found")
		return
	}
	a.Title = req.Title
	a.Content = req.Content
	writeJSON(w, http.StatusOK, *a)
}

// deleteAnnouncement handles DELETE /api/admin/announcements/{id}
func (s *Server) deleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid announcement id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.announcements[id]; !ok {
		writeError(w, http.StatusNotFound, "Announcement not found")
		return
	}
	delete(s.announcements, id)
	w.WriteHeader(http.StatusNoContent)
}

// ─── Cart ─────────────────────────────────────────────────────────────────────

// getCart handles GET /api/cart
func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := s.cartLocked(userFrom(r.Context()).ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, items)
}

// addToCart handles POST /api/cart/add
// The quota check and the decrement happen under one lock so two buyers
// can never take the last seat twice.
func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var req model.CartAdd
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.Validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := userFrom(r.Context()).ID

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[req.EventID]
	if !ok {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if e.Quota < req.Quantity {
		writeError(w, http.StatusConflict, "Not enough tickets available")
		return
	}
	e.Quota -= req.Quantity
	if s.carts[userID] == nil {
		s.carts[userID] = make(map[int64]int)
	}
	s.carts[userID][req.EventID] += req.Quantity
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

// updateCartItem handles PUT /api/cart/item/{eventId}
func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	eventID, ok := idParam(r, "eventId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var req model.CartQuantity
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	userID := userFrom(r.Context()).ID

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.carts[userID][eventID]
	if !ok {
		writeError(w, http.StatusNotFound, "Item not in cart")
		return
	}
	e := s.events[eventID]
	delta := req.Quantity - current
	if delta > e.Quota {
		writeError(w, http.StatusConflict, "Not enough tickets available")
		return
	}
	e.Quota -= delta
	s.carts[userID][eventID] = req.Quantity
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

// removeCartItem handles DELETE /api/cart/item/{eventId}
// The seats return to the event.
func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	eventID, ok := idParam(r, "eventId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	userID := userFrom(r.Context()).ID

	s.mu.Lock()
	defer s.mu.Unlock()
	qty, ok := s.carts[userID][eventID]
	if !ok {
		writeError(w, http.StatusNotFound, "Item not in cart")
		return
	}
	if e, ok := s.events[eventID]; ok {
		e.Quota += qty
	}
	delete(s.carts[userID], eventID)
	writeJSON(w, http.StatusOK, s.cartLocked(userID))
}

// ─── Users ────────────────────────────────────────────────────────────────────

// listPending handles GET /api/admin/users/pending
func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	pending := []model.PendingUser{}
	for _, a := range s.accounts {
		if a.approved {
			continue
		}
		pending = append(pending, model.PendingUser{
			ID:        a.user.ID,
			Email:     a.user.Email,
			Role:      a.user.Role,
			CreatedAt: a.user.CreatedAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	writeJSON(w, http.StatusOK, pending)
}

// approveUser handles PUT /api/admin/users/{id}/approve
func (s *Server) approveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.approved {
		writeError(w, http.StatusNotFound, "Pending user not found")
		return
	}
	acc.approved = true
	writeMessage(w, http.StatusOK, "User approved")
}

// Package model defines the domain types the ticketing client exchanges with
// the remote API and keeps in its local collections.
package model

import (
	"sort"
)

// Role is the server-issued role of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserRecord is the authenticated account as returned by /auth/login.
type UserRecord struct {
	ID                  int64     `json:"id"`
	Email               string    `json:"email"`
	Role                Role      `json:"role"`
	ForcePasswordChange bool      `json:"forcePasswordChange"`
	CreatedAt           Timestamp `json:"createdAt"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *UserRecord) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Event is a bookable event. Quota is the remaining capacity and is owned
// by the server; the client only displays it.
type Event struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Date         Date    `json:"date"`
	Location     string  `json:"location"`
	Price        float64 `json:"price"`
	Quota        int     `json:"quota"`
	InitialQuota int     `json:"initialQuota"`
}

// SoldOut returns true when no seats remain.
func (e *Event) SoldOut() bool {
	return e.Quota <= 0
}

// QuotaConsistent reports whether the remaining quota is within the
// initial quota.
func (e *Event) QuotaConsistent() bool {
	return e.Quota >= 0 && e.Quota <= e.InitialQuota
}

// Announcement is an admin-published notice.
type Announcement struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"createdAt"`
}

// CartItem is one row of the shopping cart. The server keeps at most one
// row per event.
type CartItem struct {
	EventID  int64   `json:"eventId"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Subtotal returns price × quantity.
func (c CartItem) Subtotal() float64 {
	return c.Price * float64(c.Quantity)
}

// CartTotal sums the subtotals of all rows.
func CartTotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// PendingUser is a registered account awaiting admin approval.
type PendingUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
}

// ─── Request / response payloads ─────────────────────────────────────────────

// Credentials is the payload for POST /auth/login.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Registration is the payload for POST /auth/register.
type Registration struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=user admin"`
}

// PasswordChange is the payload for POST /auth/change-password.
type PasswordChange struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *UserRecord `json:"user"`
}

// EventInput is the payload for creating or updating an event.
type EventInput struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Date        Date    `json:"date" validate:"required"`
	Location    string  `json:"location" validate:"required"`
	Price       float64 `json:"price"`
	Quota       int     `json:"quota"`
}

// AnnouncementInput is the payload for creating or updating an announcement.
type AnnouncementInput struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CartAdd is the payload for POST /cart/add.
type CartAdd struct {
	EventID  int64 `json:"eventId" validate:"required"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

// CartQuantity is the payload for PUT /cart/item/{eventId}.
type CartQuantity struct {
	Quantity int `json:"quantity"`
}

// ErrorResponse is the error envelope the API answers with. Servers use
// either field.
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ─── Ordering ─────────────────────────────────────────────────────────────────

// SortEvents orders events ascending by date, ties broken by id.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
}

// SortAnnouncements orders announcements newest first.
func SortAnnouncements(announcements []Announcement) {
	sort.SliceStable(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt.After(announcements[j].CreatedAt.Time)
	})
}

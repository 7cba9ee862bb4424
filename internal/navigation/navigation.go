// Package navigation derives the active page from session and loading
// state. Resolve is a pure function; callers re-run it after every state
// change.
package navigation

import (
	"fmt"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
)

// Page is a screen of the client.
type Page string

const (
	Home           Page = "home"
	Login          Page = "login"
	Register       Page = "register"
	ChangePassword Page = "changePassword"
	Admin          Page = "admin"
	Cart           Page = "cart"
)

// Pages lists every page.
var Pages = []Page{Home, Login, Register, ChangePassword, Admin, Cart}

// ParsePage validates a page name.
func ParsePage(s string) (Page, error) {
	for _, p := range Pages {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown page %q", s)
}

// Placeholder is shown instead of page content while state is settling.
type Placeholder string

const (
	PlaceholderNone              Placeholder = ""
	PlaceholderResolvingIdentity Placeholder = "resolvingIdentity"
	PlaceholderLoading           Placeholder = "loading"
)

// Input is everything the reducer looks at.
type Input struct {
	HasToken            bool
	HasUser             bool
	Role                model.Role
	ForcePasswordChange bool
	InitialLoadInFlight bool
	Requested           Page
}

// View is the resolved page plus an optional placeholder.
type View struct {
	Page        Page        `json:"page"`
	Placeholder Placeholder `json:"placeholder,omitempty"`
}

// maxSteps bounds the fixpoint iteration; the longest chain is
// admin → login → home.
const maxSteps = 4

// Resolve returns the page the client should show for in.
func Resolve(in Input) View {
	page := in.Requested
	if page == "" {
		page = Home
	}
	for i := 0; i < maxSteps; i++ {
		next := step(in, page)
		if next == page {
			break
		}
		page = next
	}
	return View{Page: page, Placeholder: placeholder(in, page)}
}

// Guard rewrites an explicit navigation request before it becomes the
// requested page: restricted pages need a session.
func Guard(in Input, requested Page) Page {
	if !in.HasToken && !in.HasUser && restricted(requested) {
		return Login
	}
	return requested
}

func step(in Input, page Page) Page {
	switch {
	case !in.HasToken && !in.HasUser:
		if public(page) {
			return page
		}
		return Home

	case !in.HasToken || !in.HasUser:
		// Token without a resolved user, or the transient window after a
		// login response: hold the requested page.
		return page

	case in.InitialLoadInFlight:
		return page

	case in.ForcePasswordChange:
		return ChangePassword

	case page == Login || page == Register || page == ChangePassword:
		if in.Role == model.RoleAdmin {
			return Admin
		}
		return Home

	case page == Admin && in.Role != model.RoleAdmin:
		return Login
	}
	return page
}

func placeholder(in Input, page Page) Placeholder {
	switch {
	case in.HasToken && !in.HasUser:
		if page == Login || page == Register {
			return PlaceholderNone
		}
		return PlaceholderResolvingIdentity
	case in.HasToken && in.HasUser && in.InitialLoadInFlight:
		if page == Login || page == Register || page == ChangePassword {
			return PlaceholderNone
		}
		return PlaceholderLoading
	}
	return PlaceholderNone
}

func public(p Page) bool {
	return p == Home || p == Login || p == Register
}

func restricted(p Page) bool {
	return p == Admin || p == Cart || p == ChangePassword
}

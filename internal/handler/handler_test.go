package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/navigation"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/service"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Snapshot() service.Snapshot {
	return m.Called().Get(0).(service.Snapshot)
}

func (m *mockEngine) Navigate(page navigation.Page) navigation.View {
	return m.Called(page).Get(0).(navigation.View)
}

func (m *mockEngine) ClearError() { m.Called() }

func (m *mockEngine) Login(ctx context.Context, email, password string) bool {
	return m.Called(ctx, email, password).Bool(0)
}

func (m *mockEngine) Register(ctx context.Context, email, password string, role model.Role) bool {
	return m.Called(ctx, email, password, role).Bool(0)
}

func (m *mockEngine) ChangePassword(ctx context.Context, newPassword string) bool {
	return m.Called(ctx, newPassword).Bool(0)
}

func (m *mockEngine) Logout(ctx context.Context) { m.Called(ctx) }

func (m *mockEngine) FetchEvents(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockEngine) FetchAnnouncements(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockEngine) FetchCart(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockEngine) FetchPendingUsers(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *mockEngine) AddEvent(ctx context.Context, in model.EventInput) bool {
	return m.Called(ctx, in).Bool(0)
}

func (m *mockEngine) UpdateEvent(ctx context.Context, id int64, in model.EventInput) bool {
	return m.Called(ctx, id, in).Bool(0)
}

func (m *mockEngine) DeleteEvent(ctx context.Context, id int64) bool {
	return m.Called(ctx, id).Bool(0)
}

func (m *mockEngine) AddAnnouncement(ctx context.Context, in model.AnnouncementInput) bool {
	return m.Called(ctx, in).Bool(0)
}

func (m *mockEngine) UpdateAnnouncement(ctx context.Context, id int64, in model.AnnouncementInput) bool {
	return m.Called(ctx, id, in).Bool(0)
}

func (m *mockEngine) DeleteAnnouncement(ctx context.Context, id int64) bool {
	return m.Called(ctx, id).Bool(0)
}

func (m *mockEngine) ApproveUser(ctx context.Context, id int64) bool {
	return m.Called(ctx, id).Bool(0)
}

func (m *mockEngine) AddToCart(ctx context.Context, event model.Event, quantity int) bool {
	return m.Called(ctx, event, quantity).Bool(0)
}

func (m *mockEngine) RemoveFromCart(ctx context.Context, eventID int64) bool {
	return m.Called(ctx, eventID).Bool(0)
}

func (m *mockEngine) UpdateCartQuantity(ctx context.Context, eventID int64, quantity int) bool {
	return m.Called(ctx, eventID, quantity).Bool(0)
}

type staticNotices []service.Notice

func (s staticNotices) Recent() []service.Notice { return s }

func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) Result {
	t.Helper()
	var res Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func newHandler(e *mockEngine) *Handler {
	return New(e, nil, nil, logging.Discard())
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, newHandler(&mockEngine{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginSuccess(t *testing.T) {
	e := &mockEngine{}
	e.On("Login", mock.Anything, "a@b.com", "pw").Return(true)

	rec := serve(t, newHandler(e), http.MethodPost, "/session/login", `{"email":"a@b.com","password":"pw"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Result{OK: true}, decodeResult(t, rec))
	e.AssertExpectations(t)
}

func TestLoginFailureReportsLastError(t *testing.T) {
	e := &mockEngine{}
	e.On("Login", mock.Anything, "a@b.com", "bad").Return(false)
	e.On("Snapshot").Return(service.Snapshot{LastError: "Invalid credentials"})

	rec := serve(t, newHandler(e), http.MethodPost, "/session/login", `{"email":"a@b.com","password":"bad"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, Result{Error: "Invalid credentials"}, decodeResult(t, rec))
}

func TestMalformedBodies(t *testing.T) {
	e := &mockEngine{}
	h := newHandler(e)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/session/login", `{"email":`},
		{http.MethodPost, "/session/register", `{"unknown":1}`},
		{http.MethodPost, "/navigate", `{"page":"nowhere"}`},
		{http.MethodPost, "/admin/events", `[]`},
		{http.MethodPut, "/admin/events/abc", `{}`},
		{http.MethodPut, "/cart/item/0", `{"quantity":1}`},
		{http.MethodDelete, "/admin/announcements/-3", ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := serve(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeResult(t, rec).Error)
		})
	}
	e.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	e.AssertNotCalled(t, "Navigate", mock.Anything)
}

func TestNavigate(t *testing.T) {
	e := &mockEngine{}
	e.On("Navigate", navigation.Cart).Return(navigation.View{Page: navigation.Login})

	rec := serve(t, newHandler(e), http.MethodPost, "/navigate", `{"page":"cart"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"page":"login"}`, rec.Body.String())
}

func TestStateAndCart(t *testing.T) {
	e := &mockEngine{}
	snap := service.Snapshot{
		View:          navigation.View{Page: navigation.Cart},
		Authenticated: true,
		Cart:          []model.CartItem{{EventID: 3, Title: "Gig", Price: 10, Quantity: 2}},
		CartTotal:     20,
	}
	e.On("Snapshot").Return(snap)
	h := newHandler(e)

	rec := serve(t, h, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got service.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, navigation.Cart, got.View.Page)
	assert.True(t, got.Authenticated)

	rec = serve(t, h, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cart cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, snap.Cart, cart.Items)
	assert.Equal(t, 20.0, cart.Total)
}

func TestAddToCartUsesKnownEvent(t *testing.T) {
	e := &mockEngine{}
	event := model.Event{ID: 7, Title: "Gig", Price: 12, Quota: 4}
	e.On("Snapshot").Return(service.Snapshot{Events: []model.Event{event}})
	e.On("AddToCart", mock.Anything, event, 2).Return(true)

	rec := serve(t, newHandler(e), http.MethodPost, "/cart/add", `{"eventId":7,"quantity":2}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	e.AssertExpectations(t)
}

func TestCartItemRoutes(t *testing.T) {
	e := &mockEngine{}
	e.On("UpdateCartQuantity", mock.Anything, int64(4), 0).Return(true)
	e.On("RemoveFromCart", mock.Anything, int64(5)).Return(true)
	h := newHandler(e)

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPut, "/cart/item/4", `{"quantity":0}`).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodDelete, "/cart/item/5", "").Code)
	e.AssertExpectations(t)
}

func TestAdminRoutes(t *testing.T) {
	e := &mockEngine{}
	in := model.EventInput{Title: "Gig", Date: model.NewDate(2030, 1, 2), Location: "Hall", Price: 5, Quota: 10}
	e.On("AddEvent", mock.Anything, in).Return(true)
	e.On("UpdateEvent", mock.Anything, int64(9), in).Return(true)
	e.On("DeleteEvent", mock.Anything, int64(9)).Return(true)
	e.On("AddAnnouncement", mock.Anything, model.AnnouncementInput{Title: "T", Content: "C"}).Return(true)
	e.On("ApproveUser", mock.Anything, int64(12)).Return(true)
	h := newHandler(e)

	body := `{"title":"Gig","date":"2030-01-02","location":"Hall","price":5,"quota":10}`
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPost, "/admin/events", body).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPut, "/admin/events/9", body).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodDelete, "/admin/events/9", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPost, "/admin/announcements", `{"title":"T","content":"C"}`).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPut, "/admin/users/12/approve", "").Code)
	e.AssertExpectations(t)
}

func TestAdminFailureWithoutLastError(t *testing.T) {
	e := &mockEngine{}
	e.On("DeleteEvent", mock.Anything, int64(2)).Return(false)
	e.On("Snapshot").Return(service.Snapshot{})

	rec := serve(t, newHandler(e), http.MethodDelete, "/admin/events/2", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "operation failed", decodeResult(t, rec).Error)
}

func TestLogoutAndClearError(t *testing.T) {
	e := &mockEngine{}
	e.On("Logout", mock.Anything).Return()
	e.On("ClearError").Return()
	h := newHandler(e)

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPost, "/session/logout", "").Code)
	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPost, "/session/clear-error", "").Code)
	e.AssertExpectations(t)
}

func TestNoticesAndMetrics(t *testing.T) {
	rec := metrics.New()
	rec.ObserveTeardown("user_logout")
	notices := staticNotices{{Level: service.LevelInfo, Op: "op", Message: "hello"}}
	h := New(&mockEngine{}, notices, rec.Handler(), logging.Discard())

	res := serve(t, h, http.MethodGet, "/notices", "")
	require.Equal(t, http.StatusOK, res.Code)
	var got []service.Notice
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Message)

	res = serve(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "ticketing_client_session_teardowns_total")
}

func TestNoticesEmpty(t *testing.T) {
	rec := serve(t, newHandler(&mockEngine{}), http.MethodGet, "/notices", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRefreshRoutes(t *testing.T) {
	e := &mockEngine{}
	e.On("FetchEvents", mock.Anything).Return(true)
	e.On("FetchAnnouncements", mock.Anything).Return(true)
	e.On("FetchCart", mock.Anything).Return(true)
	e.On("FetchPendingUsers", mock.Anything).Return(true)
	h := newHandler(e)

	for _, path := range []string{"/events/refresh", "/announcements/refresh", "/cart/refresh", "/admin/users/pending/refresh"} {
		assert.Equal(t, http.StatusOK, serve(t, h, http.MethodPost, path, "").Code, path)
	}
	e.AssertExpectations(t)
}

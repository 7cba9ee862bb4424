package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	assert.Equal(t, "/admin/events/:id", Route("/admin/events/42"))
	assert.Equal(t, "/admin/users/:id/approve", Route("/admin/users/7/approve"))
	assert.Equal(t, "/cart/add", Route("/cart/add"))
	assert.Equal(t, "/events", Route("/events?x=1"))
}

func TestObserveRequest(t *testing.T) {
	r := New()
	r.ObserveRequest(http.MethodPut, "/cart/item/5", 200, 10*time.Millisecond)
	r.ObserveRequest(http.MethodPut, "/cart/item/6", 200, 10*time.Millisecond)

	got := testutil.ToFloat64(r.requests.WithLabelValues(http.MethodPut, "/cart/item/:id", "200"))
	assert.Equal(t, 2.0, got)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRequest("GET", "/events", 200, time.Millisecond)
	r.ObserveTeardown("logout")
	r.ObserveSync("fetchEvents", true)
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveTeardown("auth_failure")
	r.ObserveSync("addToCart", false)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `ticketing_client_session_teardowns_total{reason="auth_failure"} 1`)
	assert.Contains(t, string(body), `ticketing_client_sync_operations_total{op="addToCart",outcome="error"} 1`)
}

package service

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/fakeapi"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/gateway"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/repository"
)

type fixture struct {
	api     *fakeapi.Server
	gw      *gateway.Client
	store   *repository.MemoryStorage
	notices *NoticeLog
	metrics *metrics.Recorder
	engine  *Engine
}

func newFixture(t *testing.T, legacy bool) *fixture {
	t.Helper()

	api := fakeapi.New()
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	gw, err := gateway.New(gateway.Config{BaseURL: srv.URL + "/api", Logger: logging.Discard()})
	require.NoError(t, err)

	f := &fixture{
		api:     api,
		gw:      gw,
		store:   repository.NewMemoryStorage(),
		notices: NewNoticeLog(50, logging.Discard()),
		metrics: metrics.New(),
	}
	f.engine = f.newEngine(legacy)
	return f
}

// newEngine builds another engine over the same API and storage, as a
// restarted client would.
func (f *fixture) newEngine(legacy bool) *Engine {
	return NewEngine(Config{
		API:                 f.gw,
		Sessions:            repository.NewSessionRepository(f.store),
		Logger:              logging.Discard(),
		Metrics:             f.metrics,
		Notifier:            f.notices,
		LegacyAuthHeuristic: legacy,
	})
}

func (f *fixture) persisted(t *testing.T) (token, user string) {
	t.Helper()
	ctx := context.Background()
	token, _, err := f.store.Get(ctx, repository.TokenKey)
	require.NoError(t, err)
	user, _, err = f.store.Get(ctx, repository.UserKey)
	require.NoError(t, err)
	return token, user
}

func (f *fixture) loginAdmin(t *testing.T) model.UserRecord {
	t.Helper()
	u := f.api.SeedUser("admin@example.com", "secret", model.RoleAdmin, true, false)
	require.True(t, f.engine.Login(context.Background(), "admin@example.com", "secret"))
	return u
}

func (f *fixture) loginUser(t *testing.T) model.UserRecord {
	t.Helper()
	u := f.api.SeedUser("user@example.com", "secret", model.RoleUser, true, false)
	require.True(t, f.engine.Login(context.Background(), "user@example.com", "secret"))
	return u
}

func (f *fixture) hasNotice(level Level, op string) bool {
	for _, n := range f.notices.Recent() {
		if n.Level == level && n.Op == op {
			return true
		}
	}
	return false
}

func eventIDs(events []model.Event) []int64 {
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func decodeUserJSON(t *testing.T, raw string) model.UserRecord {
	t.Helper()
	var u model.UserRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	return u
}

func teardowns(t *testing.T, f *fixture, reason string) float64 {
	t.Helper()
	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "ticketing_client_session_teardowns_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

package service

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/logging"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-client/internal/navigation"
)

func TestNavigateGuardsRestrictedPages(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, navigation.Login, f.engine.Navigate(navigation.Cart).Page)
	assert.Equal(t, navigation.Login, f.engine.Navigate(navigation.Admin).Page)
	assert.Equal(t, navigation.Register, f.engine.Navigate(navigation.Register).Page)

	f.loginUser(t)
	assert.Equal(t, navigation.Cart, f.engine.Navigate(navigation.Cart).Page)
	assert.Equal(t, navigation.Home, f.engine.Navigate(navigation.Admin).Page)
}

func TestLogoutResetsNavigation(t *testing.T) {
	f := newFixture(t, false)
	f.loginUser(t)
	f.engine.Navigate(navigation.Cart)

	f.engine.Logout(context.Background())

	snap := f.engine.Snapshot()
	assert.Equal(t, navigation.Home, snap.View.Page)
	assert.False(t, snap.Authenticated)
	assert.Equal(t, 1.0, teardowns(t, f, ReasonUserLogout))
}

func TestNavigateSurvivesConcurrentRefresh(t *testing.T) {
	f := newFixture(t, false)
	f.loginUser(t)
	require.Equal(t, navigation.Home, f.engine.Snapshot().View.Page)

	for round := 0; round < 200; round++ {
		f.engine.Navigate(navigation.Home)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 5; j++ {
					f.engine.refresh()
					runtime.Gosched()
				}
			}()
		}
		close(start)
		runtime.Gosched()
		view := f.engine.Navigate(navigation.Cart)
		wg.Wait()

		require.Equal(t, navigation.Cart, view.Page)
		require.Equal(t, navigation.Cart, f.engine.Snapshot().View.Page, "round %d", round)
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, false)
	f.api.SeedEvent(model.Event{Title: "Gig", Date: model.NewDate(2030, 1, 1), Location: "Hall", Price: 15, Quota: 3})

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	unsubscribe := f.engine.Subscribe(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	mu.Lock()
	require.Len(t, snaps, 1)
	assert.False(t, snaps[0].Authenticated)
	mu.Unlock()

	f.loginUser(t)

	mu.Lock()
	last := snaps[len(snaps)-1]
	sawLoading := false
	for _, s := range snaps {
		if s.InitialLoadInFlight {
			sawLoading = true
		}
	}
	count := len(snaps)
	mu.Unlock()

	assert.True(t, sawLoading)
	assert.True(t, last.Authenticated)
	assert.Len(t, last.Events, 1)

	unsubscribe()
	f.engine.Logout(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, snaps, count)
}

func TestSnapshotCartTotal(t *testing.T) {
	f := newFixture(t, false)
	a := f.api.SeedEvent(model.Event{Title: "A", Date: model.NewDate(2030, 1, 1), Location: "x", Price: 12.5, Quota: 5})
	b := f.api.SeedEvent(model.Event{Title: "B", Date: model.NewDate(2030, 1, 2), Location: "x", Price: 30, Quota: 5})
	f.loginUser(t)
	ctx := context.Background()

	require.True(t, f.engine.AddToCart(ctx, a, 2))
	require.True(t, f.engine.AddToCart(ctx, b, 1))

	assert.InDelta(t, 55.0, f.engine.Snapshot().CartTotal, 1e-9)
	assert.InDelta(t, 55.0, f.engine.CartTotal(), 1e-9)
}

func TestClearError(t *testing.T) {
	f := newFixture(t, false)
	require.False(t, f.engine.Login(context.Background(), "", ""))
	require.NotEmpty(t, f.engine.Snapshot().LastError)

	f.engine.ClearError()

	assert.Empty(t, f.engine.Snapshot().LastError)
}

func TestNoticeLogKeepsNewest(t *testing.T) {
	log := NewNoticeLog(3, logging.Discard())
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, msg := range []string{"a", "b", "c", "d", "e"} {
		log.Notify(Notice{Level: LevelInfo, Op: "op", Message: msg, At: at.Add(time.Duration(i) * time.Second)})
	}

	recent := log.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].Message)
	assert.Equal(t, "d", recent[1].Message)
	assert.Equal(t, "e", recent[2].Message)
}

func TestNoticeLogStampsTime(t *testing.T) {
	log := NewNoticeLog(0, nil)
	log.Notify(Notice{Level: LevelError, Op: "op", Message: "x"})

	recent := log.Recent()
	require.Len(t, recent, 1)
	assert.False(t, recent[0].At.IsZero())
}

package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "calendar date", input: `"2025-06-01"`, want: NewDate(2025, time.June, 1)},
		{name: "timestamp keeps date part", input: `"2025-06-01T18:30:00.000Z"`, want: NewDate(2025, time.June, 1)},
		{name: "null", input: `null`, want: Date{}},
		{name: "empty string", input: `""`, want: Date{}},
		{name: "garbage", input: `"first of june"`, wantErr: true},
		{name: "number", input: `20250601`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d), "got %s want %s", d, tt.want)
		})
	}
}

func TestDateMarshal(t *testing.T) {
	out, err := json.Marshal(Event{ID: 1, Date: NewDate(2025, time.March, 9)})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"date":"2025-03-09"`)
}

func TestTimestampUnmarshal(t *testing.T) {
	want := time.Date(2025, time.June, 1, 18, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: `"2025-06-01T18:30:00.000Z"`, want: want},
		{name: "offset", input: `"2025-06-01T20:30:00+02:00"`, want: want},
		{name: "no zone", input: `"2025-06-01T18:30:00"`, want: want},
		{name: "space separated", input: `"2025-06-01 18:30:00"`, want: want},
		{name: "http date", input: `"Sun, 01 Jun 2025 18:30:00 GMT"`, want: want},
		{name: "calendar date", input: `"2025-06-01"`, want: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis", input: `1748802600000`, want: want},
		{name: "epoch millis string", input: `"1748802600000"`, want: want},
		{name: "null", input: `null`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %s want %s", ts.Time, tt.want)
		})
	}
}

func TestAnnouncementWithLooseTimestamp(t *testing.T) {
	var list []Announcement
	err := json.Unmarshal([]byte(`[{"id":1,"title":"t","content":"c","createdAt":"2025-06-01 18:30:00"}]`), &list)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2025, list[0].CreatedAt.Year())

	out, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"createdAt":"2025-06-01T18:30:00Z"`)
}

func TestSortEvents(t *testing.T) {
	events := []Event{
		{ID: 3, Date: NewDate(2025, 9, 1)},
		{ID: 2, Date: NewDate(2025, 1, 1)},
		{ID: 1, Date: NewDate(2025, 9, 1)},
	}
	SortEvents(events)

	ids := []int64{events[0].ID, events[1].ID, events[2].ID}
	assert.Equal(t, []int64{2, 1, 3}, ids)
}

func TestSortAnnouncements(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	anns := []Announcement{
		{ID: 1, CreatedAt: NewTimestamp(base)},
		{ID: 2, CreatedAt: NewTimestamp(base.Add(2 * time.Hour))},
		{ID: 3, CreatedAt: NewTimestamp(base.Add(time.Hour))},
	}
	SortAnnouncements(anns)

	assert.Equal(t, int64(2), anns[0].ID)
	assert.Equal(t, int64(3), anns[1].ID)
	assert.Equal(t, int64(1), anns[2].ID)
}

func TestCartTotal(t *testing.T) {
	items := []CartItem{
		{EventID: 1, Price: 12.5, Quantity: 2},
		{EventID: 2, Price: 100, Quantity: 1},
	}
	assert.InDelta(t, 125.0, CartTotal(items), 1e-9)
	assert.Zero(t, CartTotal(nil))
}

func TestEventQuota(t *testing.T) {
	e := Event{Quota: 0, InitialQuota: 10}
	assert.True(t, e.SoldOut())
	assert.True(t, e.QuotaConsistent())

	e.Quota = 11
	assert.False(t, e.QuotaConsistent())
}

func TestValidate(t *testing.T) {
	t.Run("valid registration", func(t *testing.T) {
		err := Validate(Registration{Email: "a@b.com", Password: "pw", Role: RoleUser})
		assert.NoError(t, err)
	})

	t.Run("missing fields", func(t *testing.T) {
		err := Validate(Credentials{})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.ElementsMatch(t, []string{"email", "password"}, verr.Fields)
		assert.Contains(t, err.Error(), "email is required")
	})

	t.Run("unknown role", func(t *testing.T) {
		err := Validate(Registration{Email: "a@b.com", Password: "pw", Role: "root"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"role"}, verr.Fields)
	})

	t.Run("zero date is missing", func(t *testing.T) {
		err := Validate(EventInput{Title: "Concert", Location: "Hall"})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, []string{"date"}, verr.Fields)
	})

	t.Run("quantity must be positive", func(t *testing.T) {
		err := Validate(CartAdd{EventID: 5, Quantity: 0})
		assert.Error(t, err)
		assert.NoError(t, Validate(CartAdd{EventID: 5, Quantity: 1}))
	})
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"LOW", PriorityLow, true},
		{"medium", PriorityMedium, true},
		{" High ", PriorityHigh, true},
		{"urgent", PriorityLow, false},
		{"", PriorityLow, false},
	}
	for _, tc := range cases {
		got, ok := ParsePriority(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestReminder_NormalizeAndValidate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	r := &Reminder{
		Title:       "  Buy milk ",
		DueDateTime: time.Date(2025, 3, 1, 9, 30, 15, 500, loc),
	}
	r.Normalize()

	require.NoError(t, r.Validate())
	assert.Equal(t, "Buy milk", r.Title)
	assert.Equal(t, PriorityLow, r.Priority)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC), r.DueDateTime)

	blank := &Reminder{Title: "   "}
	assert.ErrorIs(t, blank.Validate(), ErrEmptyTitle)
}

func TestReminder_Completed(t *testing.T) {
	r := Reminder{ID: 4, Title: "x"}
	done := r.Completed()

	assert.True(t, done.IsCompleted)
	assert.False(t, r.IsCompleted)
	assert.Equal(t, int64(4), done.ID)
}

func TestParseDateTime(t *testing.T) {
	want := time.Date(2025, 6, 2, 7, 5, 0, 0, time.UTC)
	for _, in := range []string{"2025-06-02T07:05", "2025-06-02T07:05:00", "2025-06-02 07:05", "2025-06-02T07:05:00.000"} {
		got, err := ParseDateTime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDateTime("tomorrow")
	assert.Error(t, err)
}

func TestAt_UsesWallClockInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	wall := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	instant := At(wall, loc)
	assert.Equal(t, 13, instant.UTC().Hour())
}

func TestReminderFromExtras_Defaults(t *testing.T) {
	now := time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

	r := ReminderFromExtras(nil, now)
	assert.Equal(t, int64(0), r.ID)
	assert.Equal(t, DefaultAlarmTitle, r.Title)
	assert.Equal(t, "", r.Description)
	assert.Equal(t, PriorityLow, r.Priority)
	assert.Equal(t, now, r.DueDateTime)

	garbled := ReminderFromExtras(Extras{
		ExtraID:          "abc",
		ExtraTitle:       "",
		ExtraPriority:    "SEVERE",
		ExtraDueDateTime: "not a date",
	}, now)
	assert.Equal(t, int64(0), garbled.ID)
	assert.Equal(t, DefaultAlarmTitle, garbled.Title)
	assert.Equal(t, PriorityLow, garbled.Priority)
	assert.Equal(t, now, garbled.DueDateTime)
}

func TestExtras_RoundTripThroughDelivery(t *testing.T) {
	src := &Reminder{
		ID:          12,
		Title:       "Standup",
		Description: "room 4",
		Priority:    PriorityHigh,
		DueDateTime: time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC),
	}

	got := ReminderFromExtras(ExtrasFromReminder(src), time.Now())
	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, src.Title, got.Title)
	assert.Equal(t, src.Description, got.Description)
	assert.Equal(t, src.Priority, got.Priority)
	assert.Equal(t, src.DueDateTime, got.DueDateTime)
}

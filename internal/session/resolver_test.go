package session

import (
	"testing"
	"time"

	"github.com/newthinker/orb/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brisbane(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{9, 30}, c)

	c, err = ParseClock("0030")
	require.NoError(t, err)
	assert.Equal(t, Clock{0, 30}, c)
	assert.Equal(t, "00:30", c.String())

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}

func TestResolve_DaySlot(t *testing.T) {
	loc := brisbane(t)
	r, err := NewResolver(DefaultConfig(loc))
	require.NoError(t, err)

	w, err := r.Resolve(time.Date(2024, 3, 4, 0, 0, 0, 0, loc), "0900")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 5, 0, 0, loc), w.RangeEnd)
	// Scan runs through to the next day's reference open, not a short fixed offset.
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, loc), w.ScanEnd)
}

func TestResolve_EveningSlot(t *testing.T) {
	loc := brisbane(t)
	r, err := NewResolver(DefaultConfig(loc))
	require.NoError(t, err)

	w, err := r.Resolve(time.Date(2024, 3, 4, 15, 0, 0, 0, loc), "2300")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 23, 0, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, loc), w.ScanEnd)
}

func TestResolve_OvernightSlotRollsToNextDate(t *testing.T) {
	loc := brisbane(t)
	r, err := NewResolver(DefaultConfig(loc))
	require.NoError(t, err)

	w, err := r.Resolve(time.Date(2024, 3, 4, 0, 0, 0, 0, loc), "0030")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, loc), w.TradingDay)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 30, 0, 0, loc), w.Start)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 35, 0, 0, loc), w.RangeEnd)
	assert.Equal(t, time.Date(2024, 3, 5, 9, 0, 0, 0, loc), w.ScanEnd)
}

func TestResolve_SlotRangeOverride(t *testing.T) {
	cfg := Config{
		Location:        time.UTC,
		ReferenceOpen:   Clock{9, 0},
		OvernightCutoff: Clock{6, 0},
		RangeDuration:   5 * time.Minute,
		Slots:           []Slot{{Name: "1000", Start: Clock{10, 0}, RangeDuration: 15 * time.Minute}},
	}
	r, err := NewResolver(cfg)
	require.NoError(t, err)

	w, err := r.Resolve(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "1000")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, w.RangeEnd.Sub(w.Start))
}

func TestResolve_UnknownSlot(t *testing.T) {
	r, err := NewResolver(DefaultConfig(time.UTC))
	require.NoError(t, err)

	_, err = r.Resolve(time.Now(), "1234")
	assert.ErrorIs(t, err, core.ErrInvalidParams)
}

func TestResolver_SlotsInTradingDayOrder(t *testing.T) {
	r, err := NewResolver(DefaultConfig(time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"0900", "1000", "1100", "1800", "2300", "0030"}, r.Slots())
}

func TestNewResolver_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no slots", Config{RangeDuration: time.Minute}},
		{"zero range", Config{Slots: DefaultSlots()}},
		{"duplicate slot", Config{RangeDuration: time.Minute, Slots: []Slot{{Name: "a"}, {Name: "a"}}}},
		{"unnamed slot", Config{RangeDuration: time.Minute, Slots: []Slot{{Start: Clock{9, 0}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.cfg)
			assert.Error(t, err)
		})
	}
}

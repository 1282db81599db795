// Package session maps a trading-day label and a named opening-range slot to
// absolute timestamps in exchange-local time.
package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/orb/internal/core"
)

// Clock is a local time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" or "HHMM".
func ParseClock(s string) (Clock, error) {
	var c Clock
	layouts := []string{"15:04", "1504"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			c.Hour, c.Minute = t.Hour(), t.Minute()
			return c, nil
		}
	}
	return c, fmt.Errorf("invalid clock %q (expected HH:MM)", s)
}

// String formats as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) before(o Clock) bool {
	return c.Hour < o.Hour || (c.Hour == o.Hour && c.Minute < o.Minute)
}

func (c Clock) on(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, loc)
}

// Slot is a named opening-range start time.
type Slot struct {
	Name  string
	Start Clock
	// RangeDuration overrides Config.RangeDuration when non-zero.
	RangeDuration time.Duration
}

// Config describes the exchange-local session calendar.
type Config struct {
	Location        *time.Location
	ReferenceOpen   Clock         // every scan runs through the next occurrence of this time
	OvernightCutoff Clock         // slots earlier than this belong to the next calendar date
	RangeDuration   time.Duration // default opening-range length
	Slots           []Slot
}

// Window is the resolved time frame for one (trading day, slot).
//
// Opening-range bars are those in [Start, RangeEnd); breakout bars are those in
// [RangeEnd, ScanEnd).
type Window struct {
	TradingDay time.Time
	Slot       string
	Start      time.Time
	RangeEnd   time.Time
	ScanEnd    time.Time
}

// Resolver resolves session windows. It is immutable after construction.
type Resolver struct {
	cfg   Config
	slots map[string]Slot
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RangeDuration <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("range duration must be positive"))
	}
	if len(cfg.Slots) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("no session slots configured"))
	}

	slots := make(map[string]Slot, len(cfg.Slots))
	for _, s := range cfg.Slots {
		if s.Name == "" {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("slot without name"))
		}
		if _, dup := slots[s.Name]; dup {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate slot %q", s.Name))
		}
		if s.RangeDuration < 0 {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("slot %q: negative range duration", s.Name))
		}
		slots[s.Name] = s
	}
	cfg.Slots = append([]Slot(nil), cfg.Slots...)

	return &Resolver{cfg: cfg, slots: slots}, nil
}

// Location returns the exchange time zone.
func (r *Resolver) Location() *time.Location {
	return r.cfg.Location
}

// Slots returns slot names in trading-day order (the slots after the overnight
// cutoff first, then the overnight ones).
func (r *Resolver) Slots() []string {
	ordered := append([]Slot(nil), r.cfg.Slots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		oi, oj := r.overnight(ordered[i]), r.overnight(ordered[j])
		if oi != oj {
			return !oi
		}
		return ordered[i].Start.before(ordered[j].Start)
	})
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = s.Name
	}
	return names
}

// Resolve returns the window for slot on the trading day labelled by date.
// Only the calendar date of date is used.
func (r *Resolver) Resolve(date time.Time, slot string) (Window, error) {
	s, ok := r.slots[slot]
	if !ok {
		return Window{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unknown session slot %q", slot))
	}

	loc := r.cfg.Location
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	calendar := day
	if r.overnight(s) {
		calendar = day.AddDate(0, 0, 1)
	}

	start := s.Start.on(calendar, loc)
	dur := s.RangeDuration
	if dur == 0 {
		dur = r.cfg.RangeDuration
	}
	rangeEnd := start.Add(dur)

	return Window{
		TradingDay: day,
		Slot:       s.Name,
		Start:      start,
		RangeEnd:   rangeEnd,
		ScanEnd:    r.nextReferenceOpen(rangeEnd),
	}, nil
}

// nextReferenceOpen is the first reference open strictly after t.
func (r *Resolver) nextReferenceOpen(t time.Time) time.Time {
	local := t.In(r.cfg.Location)
	candidate := r.cfg.ReferenceOpen.on(local, r.cfg.Location)
	if !candidate.After(local) {
		candidate = r.cfg.ReferenceOpen.on(local.AddDate(0, 0, 1), r.cfg.Location)
	}
	return candidate
}

func (r *Resolver) overnight(s Slot) bool {
	return s.Start.before(r.cfg.OvernightCutoff)
}

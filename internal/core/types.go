package core

import (
	"fmt"
	"strings"
	"time"
)

// Bar is one OHLCV bar stamped in exchange-local time. Bars are read-only once
// loaded; the engine never mutates a slice it was handed.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IsValid checks the OHLC envelope.
func (b Bar) IsValid() bool {
	if b.Time.IsZero() || b.High < b.Low {
		return false
	}
	return b.Open <= b.High && b.Open >= b.Low && b.Close <= b.High && b.Close >= b.Low
}

// Granularity is the bar width.
type Granularity string

const (
	Granularity1m Granularity = "1m"
	Granularity5m Granularity = "5m"
)

// Duration returns the bar width, or zero for an unknown granularity.
func (g Granularity) Duration() time.Duration {
	switch g {
	case Granularity1m:
		return time.Minute
	case Granularity5m:
		return 5 * time.Minute
	default:
		return 0
	}
}

// ParseGranularity accepts "1m"/"5m" in any case.
func ParseGranularity(s string) (Granularity, error) {
	g := Granularity(strings.ToLower(strings.TrimSpace(s)))
	if g.Duration() == 0 {
		return "", fmt.Errorf("unsupported granularity %q", s)
	}
	return g, nil
}

// Direction is the side of a breakout.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// String returns UP/DOWN.
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	default:
		return "NONE"
	}
}

// Sign is +1 for UP, -1 for DOWN and 0 otherwise.
func (d Direction) Sign() float64 {
	switch d {
	case DirectionUp:
		return 1
	case DirectionDown:
		return -1
	default:
		return 0
	}
}

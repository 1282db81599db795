package session

import "time"

// DefaultTimezone is the exchange-local zone the default slots are quoted in.
const DefaultTimezone = "Australia/Brisbane"

// DefaultSlots are the opening-range slots of the default calendar.
func DefaultSlots() []Slot {
	return []Slot{
		{Name: "0900", Start: Clock{9, 0}},
		{Name: "1000", Start: Clock{10, 0}},
		{Name: "1100", Start: Clock{11, 0}},
		{Name: "1800", Start: Clock{18, 0}},
		{Name: "2300", Start: Clock{23, 0}},
		{Name: "0030", Start: Clock{0, 30}},
	}
}

// DefaultConfig returns the default calendar in loc.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		Location:        loc,
		ReferenceOpen:   Clock{9, 0},
		OvernightCutoff: Clock{6, 0},
		RangeDuration:   5 * time.Minute,
		Slots:           DefaultSlots(),
	}
}

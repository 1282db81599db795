// Package execution detects opening-range breakouts and simulates the entry
// fill under one of three execution policies.
package execution

import (
	"errors"
	"fmt"
	"strings"
)

// Execution-related errors.
var (
	// ErrInvalidPolicy indicates an unknown or misconfigured execution policy.
	ErrInvalidPolicy = errors.New("execution: invalid execution policy")
)

// PolicyKind names an execution policy at configuration boundaries.
type PolicyKind string

const (
	// KindMarketOnConfirm fills at the close of the Nth confirming bar plus slippage.
	KindMarketOnConfirm PolicyKind = "market_on_confirm"
	// KindRangeEdge rests a stop order at the range boundary and fills once
	// price trades through it by the penetration margin.
	KindRangeEdge PolicyKind = "range_edge"
	// KindRetrace waits for a close confirmation, then rests a limit order at
	// the boundary and fills only if price retraces to it.
	KindRetrace PolicyKind = "retrace_after_confirm"
)

// Policy is the closed set of execution policies. Only this package can add
// implementations, so every switch over Policy lists all of them.
type Policy interface {
	Kind() PolicyKind
	Validate() error
	String() string
	sealed()
}

// MarketOnConfirm enters at market once ConfirmBars consecutive closes sit
// strictly outside the range on the same side.
type MarketOnConfirm struct {
	ConfirmBars   int
	SlippageTicks float64 // applied against the trader
}

// RangeEdge is a resting stop at the range boundary. A bare touch does not
// fill; price has to trade PenetrationTicks beyond the boundary.
type RangeEdge struct {
	PenetrationTicks float64
}

// RetraceAfterConfirm uses the MarketOnConfirm signal, then waits for price to
// come back to the boundary. No retrace before the scan ends means no entry.
type RetraceAfterConfirm struct {
	ConfirmBars          int
	AdverseSlippageTicks float64 // fill is this many ticks worse than the boundary
}

func (MarketOnConfirm) sealed()     {}
func (RangeEdge) sealed()           {}
func (RetraceAfterConfirm) sealed() {}

func (MarketOnConfirm) Kind() PolicyKind     { return KindMarketOnConfirm }
func (RangeEdge) Kind() PolicyKind           { return KindRangeEdge }
func (RetraceAfterConfirm) Kind() PolicyKind { return KindRetrace }

func (p MarketOnConfirm) Validate() error {
	if p.ConfirmBars < 1 {
		return fmt.Errorf("%w: confirm_bars must be >= 1, got %d", ErrInvalidPolicy, p.ConfirmBars)
	}
	if p.SlippageTicks < 0 {
		return fmt.Errorf("%w: slippage_ticks cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

func (p RangeEdge) Validate() error {
	if p.PenetrationTicks < 0 {
		return fmt.Errorf("%w: penetration_ticks cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

func (p RetraceAfterConfirm) Validate() error {
	if p.ConfirmBars < 1 {
		return fmt.Errorf("%w: confirm_bars must be >= 1, got %d", ErrInvalidPolicy, p.ConfirmBars)
	}
	if p.AdverseSlippageTicks < 0 {
		return fmt.Errorf("%w: adverse_slippage_ticks cannot be negative", ErrInvalidPolicy)
	}
	return nil
}

func (p MarketOnConfirm) String() string {
	return fmt.Sprintf("%s(n=%d,slip=%g)", p.Kind(), p.ConfirmBars, p.SlippageTicks)
}

func (p RangeEdge) String() string {
	return fmt.Sprintf("%s(pen=%g)", p.Kind(), p.PenetrationTicks)
}

func (p RetraceAfterConfirm) String() string {
	return fmt.Sprintf("%s(n=%d,adverse=%g)", p.Kind(), p.ConfirmBars, p.AdverseSlippageTicks)
}

// Params carries the union of policy parameters as they appear in config files
// and CLI flags.
type Params struct {
	ConfirmBars          int     `mapstructure:"confirm_bars"`
	SlippageTicks        float64 `mapstructure:"slippage_ticks"`
	PenetrationTicks     float64 `mapstructure:"penetration_ticks"`
	AdverseSlippageTicks float64 `mapstructure:"adverse_slippage_ticks"`
}

// DefaultParams returns sensible defaults for all three policies.
func DefaultParams() Params {
	return Params{
		ConfirmBars:          1,
		SlippageTicks:        1,
		PenetrationTicks:     2,
		AdverseSlippageTicks: 1,
	}
}

// ParseKind accepts a policy name in any case, with '-' or '_' separators.
func ParseKind(s string) (PolicyKind, error) {
	k := PolicyKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case KindMarketOnConfirm, KindRangeEdge, KindRetrace:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, s)
	}
}

// NewPolicy builds the variant for kind from p and validates it.
func NewPolicy(kind PolicyKind, p Params) (Policy, error) {
	var pol Policy
	switch kind {
	case KindMarketOnConfirm:
		pol = MarketOnConfirm{ConfirmBars: p.ConfirmBars, SlippageTicks: p.SlippageTicks}
	case KindRangeEdge:
		pol = RangeEdge{PenetrationTicks: p.PenetrationTicks}
	case KindRetrace:
		pol = RetraceAfterConfirm{ConfirmBars: p.ConfirmBars, AdverseSlippageTicks: p.AdverseSlippageTicks}
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidPolicy, kind)
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	return pol, nil
}

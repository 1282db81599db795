package engine

import (
	"fmt"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/cost"
	"github.com/newthinker/orb/internal/execution"
	"github.com/newthinker/orb/internal/outcome"
)

// Params is one point of the parameter grid.
type Params struct {
	Policy   execution.Policy
	RR       float64
	StopMode outcome.StopMode
	Anchor   outcome.Anchor
	Stress   cost.Stress
}

// DefaultParams is a 1-bar market confirm at 2R with a full stop.
func DefaultParams() Params {
	return Params{
		Policy:   execution.MarketOnConfirm{ConfirmBars: 1, SlippageTicks: 1},
		RR:       2,
		StopMode: outcome.StopFull,
		Anchor:   outcome.AnchorFill,
		Stress:   cost.StressNormal,
	}
}

// Validate checks everything that can be checked without data.
func (p Params) Validate() error {
	if p.Policy == nil {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("execution policy is required"))
	}
	if err := p.Policy.Validate(); err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	if p.RR <= 0 {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("reward:risk must be positive, got %g", p.RR))
	}
	if _, err := outcome.ParseStopMode(string(p.StopMode)); err != nil {
		return err
	}
	if _, err := outcome.ParseAnchor(string(p.Anchor)); err != nil {
		return err
	}
	return nil
}

// Key identifies the parameter set in reports and stored rows.
func (p Params) Key() string {
	policy := "<nil>"
	if p.Policy != nil {
		policy = p.Policy.String()
	}
	stress := p.Stress
	if stress == "" {
		stress = cost.StressNormal
	}
	return fmt.Sprintf("%s|rr=%g|stop=%s|anchor=%s|stress=%s", policy, p.RR, p.StopMode, p.Anchor, stress)
}

// Unique drops parameter sets whose Key repeats an earlier one, keeping the
// first occurrence and the order of the rest.
func Unique(grid []Params) []Params {
	seen := make(map[string]bool, len(grid))
	out := make([]Params, 0, len(grid))
	for _, p := range grid {
		k := p.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

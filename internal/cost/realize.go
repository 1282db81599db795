package cost

import (
	"fmt"

	"github.com/newthinker/orb/internal/core"
	"github.com/newthinker/orb/internal/outcome"
	"github.com/shopspring/decimal"
)

// GateError reports a trade rejected by the minimum-viable-risk gate. It
// matches core.ErrCostGateRejected under errors.Is.
type GateError struct {
	Symbol    string
	Ratio     float64 // friction / dollar risk
	Threshold float64
	Friction  float64
	Risk      float64 // dollar risk before friction
}

func (e *GateError) Error() string {
	return fmt.Sprintf("[%s] %s: %s friction $%.2f is %.1f%% of $%.2f risk (limit %.1f%%)",
		core.ErrCostGateRejected.Code, core.ErrCostGateRejected.Message,
		e.Symbol, e.Friction, e.Ratio*100, e.Risk, e.Threshold*100)
}

// Is matches the cost gate error code.
func (e *GateError) Is(target error) bool {
	t, ok := target.(*core.Error)
	return ok && t.Code == core.ErrCostGateRejected.Code
}

// CostedResult is a cost-adjusted return for one trade.
type CostedResult struct {
	Symbol         string
	Stress         Stress
	RiskPoints     float64
	RewardPoints   float64
	RealizedR      float64 // realized reward / realized risk on WIN, -1 on LOSS
	RealizedRisk   float64 // risk points × point value + friction
	RealizedReward float64 // reward points × point value − friction
	Friction       float64
	FrictionRatio  float64 // friction / (risk points × point value)
	Viable         bool
	// Downgraded is set when a target hit is worth nothing after friction and
	// the result has been booked as a loss.
	Downgraded bool
}

// Compute prices a trade with the given risk distance and reward:risk ratio
// as if it hit its target. The scope guard runs before any arithmetic. A
// result failing the gate is returned with Viable=false together with a
// *GateError; callers must not aggregate it.
func (m *Model) Compute(symbol string, riskPoints, rr float64, stress Stress) (*CostedResult, error) {
	spec, err := m.registry.Guard(symbol)
	if err != nil {
		return nil, err
	}
	if riskPoints <= 0 {
		return nil, core.WrapError(core.ErrInvalidRisk, fmt.Errorf("risk distance %g", riskPoints))
	}
	if rr <= 0 {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("reward:risk must be positive, got %g", rr))
	}
	mult, err := m.multiplier(stress)
	if err != nil {
		return nil, err
	}
	if stress == "" {
		stress = StressNormal
	}

	pv := decimal.NewFromFloat(spec.PointValue)
	risk := decimal.NewFromFloat(riskPoints)
	reward := risk.Mul(decimal.NewFromFloat(rr))
	friction := spec.FrictionDecimal().Mul(mult)

	dollarRisk := risk.Mul(pv)
	ratio := friction.Div(dollarRisk)
	realizedRisk := dollarRisk.Add(friction)
	realizedReward := reward.Mul(pv).Sub(friction)

	res := &CostedResult{
		Symbol:         spec.Symbol,
		Stress:         stress,
		RiskPoints:     riskPoints,
		RewardPoints:   reward.InexactFloat64(),
		RealizedRisk:   realizedRisk.InexactFloat64(),
		RealizedReward: realizedReward.InexactFloat64(),
		Friction:       friction.InexactFloat64(),
		FrictionRatio:  ratio.InexactFloat64(),
	}

	if ratio.GreaterThan(m.threshold) {
		res.RealizedR = -1
		return res, &GateError{
			Symbol:    spec.Symbol,
			Ratio:     res.FrictionRatio,
			Threshold: m.threshold.InexactFloat64(),
			Friction:  res.Friction,
			Risk:      dollarRisk.InexactFloat64(),
		}
	}

	res.Viable = true
	if !realizedReward.IsPositive() {
		res.RealizedR = -1
		res.Downgraded = true
		return res, nil
	}
	res.RealizedR = realizedReward.Div(realizedRisk).InexactFloat64()
	return res, nil
}

// Realize costs a resolved theoretical outcome. A LOSS is booked at exactly
// -1R. Only WIN and LOSS can be realized.
func (m *Model) Realize(symbol string, riskPoints, rr float64, class outcome.Class, stress Stress) (*CostedResult, error) {
	if !class.Resolved() {
		if _, err := m.registry.Guard(symbol); err != nil {
			return nil, err
		}
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("cannot realize a %s trade", class))
	}
	res, err := m.Compute(symbol, riskPoints, rr, stress)
	if err != nil {
		return res, err
	}
	if class == outcome.ClassLoss {
		res.RealizedR = -1
		res.Downgraded = false
	}
	return res, nil
}

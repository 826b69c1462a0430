package usecase

import (
	"SignalPilot/internal/domain/errs"
	"SignalPilot/internal/domain/models"
)

const (
	MinLeverage = 1
	MaxLeverage = 10
)

// DefaultMultipliers are the system-wide SL/TP multipliers.
var DefaultMultipliers = models.Multipliers{
	StopLoss:      2,
	TakeProfit:    3,
	MaxStopLoss:   5,
	MaxTakeProfit: 6,
}

// ProtectionCalculator derives mandatory SL/TP from leverage. It holds no state
// beyond its defaults and is safe for concurrent use.
type ProtectionCalculator struct {
	defaults models.Multipliers
}

// NewProtectionCalculator returns a calculator; zero fields of defaults fall
// back to DefaultMultipliers.
func NewProtectionCalculator(defaults models.Multipliers) *ProtectionCalculator {
	return &ProtectionCalculator{defaults: mergeMultipliers(DefaultMultipliers, &defaults)}
}

// Compute returns SL = leverage*sl and TP = leverage*tp, each clamped to
// leverage*max. Per-user overrides win over the system defaults.
func (p *ProtectionCalculator) Compute(leverage int, overrides *models.Multipliers) (models.OrderProtection, error) {
	if leverage < MinLeverage || leverage > MaxLeverage {
		return models.OrderProtection{}, errs.Validation("leverage_out_of_range",
			"leverage %d outside [%d, %d]", leverage, MinLeverage, MaxLeverage)
	}
	m := mergeMultipliers(p.defaults, overrides)
	lev := float64(leverage)

	sl := clamp(lev*m.StopLoss, lev*m.MaxStopLoss)
	tp := clamp(lev*m.TakeProfit, lev*m.MaxTakeProfit)
	if sl <= 0 || tp <= 0 {
		return models.OrderProtection{}, errs.FatalConfig("protection_non_positive",
			"computed stop loss %.2f / take profit %.2f must be positive", sl, tp)
	}
	return models.OrderProtection{
		Leverage:          leverage,
		StopLossPercent:   sl,
		TakeProfitPercent: tp,
	}, nil
}

func mergeMultipliers(base models.Multipliers, o *models.Multipliers) models.Multipliers {
	if o == nil {
		return base
	}
	if o.StopLoss != 0 {
		base.StopLoss = o.StopLoss
	}
	if o.TakeProfit != 0 {
		base.TakeProfit = o.TakeProfit
	}
	if o.MaxStopLoss != 0 {
		base.MaxStopLoss = o.MaxStopLoss
	}
	if o.MaxTakeProfit != 0 {
		base.MaxTakeProfit = o.MaxTakeProfit
	}
	return base
}

func clamp(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

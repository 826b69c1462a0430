package usecase

import (
	"fmt"
	"time"

	"SignalPilot/internal/domain/models"
)

const (
	breadthNeutralLow  = 45.0
	breadthNeutralHigh = 55.0
)

// RequiredFavorable is 2 for strong signals and 3 otherwise.
func RequiredFavorable(strong bool) int {
	if strong {
		return 2
	}
	return 3
}

// EvaluateMarketAlignment is favorable when both sides are allowed or the
// verdict matches or prefers the signal side.
func EvaluateMarketAlignment(dir models.Direction, snap models.MarketDirectionSnapshot) models.ConditionResult {
	allowed := snap.AllowedDirection
	switch {
	case allowed == models.AllowLongAndShort:
		return models.ConditionResult{Favorable: true, Detail: "market allows both sides"}
	case allowed.Side() == dir:
		return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("market %s supports %s", allowed, dir)}
	default:
		return models.ConditionResult{Detail: fmt.Sprintf("market %s does not support %s", allowed, dir)}
	}
}

// EvaluateMomentum checks the oscillator against the side's bound. A missing
// reading is neutral and counts as favorable.
func EvaluateMomentum(dir models.Direction, value *float64, upper, lower float64) models.ConditionResult {
	if value == nil {
		return models.ConditionResult{Favorable: true, Detail: "oscillator unavailable, treated as neutral"}
	}
	v := *value
	switch dir {
	case models.DirectionLong:
		if v < upper {
			return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("oscillator %.1f below %.0f leaves room to rise", v, upper)}
		}
		return models.ConditionResult{Detail: fmt.Sprintf("oscillator %.1f overbought (>= %.0f)", v, upper)}
	case models.DirectionShort:
		if v > lower {
			return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("oscillator %.1f above %.0f leaves room to fall", v, lower)}
		}
		return models.ConditionResult{Detail: fmt.Sprintf("oscillator %.1f oversold (<= %.0f)", v, lower)}
	}
	return models.ConditionResult{Detail: "no side to evaluate momentum for"}
}

// EvaluateAssetHistory is unfavorable when two or more opposite-side signals
// were approved within window, or when three or more same-side signals exist
// and at least two of them were rejected. Only signal-level outcomes count.
func EvaluateAssetHistory(dir models.Direction, outcomes []models.SignalOutcome, now time.Time, window time.Duration) models.ConditionResult {
	var oppositeApproved, same, sameRejected int
	for _, o := range outcomes {
		if o.UserID != "" {
			continue
		}
		switch o.Direction {
		case dir.Opposite():
			if o.Approved && now.Sub(o.Timestamp) <= window {
				oppositeApproved++
			}
		case dir:
			same++
			if !o.Approved {
				sameRejected++
			}
		}
	}
	switch {
	case oppositeApproved >= 2:
		return models.ConditionResult{Detail: fmt.Sprintf("%d opposite-side approvals within %s", oppositeApproved, window)}
	case same >= 3 && sameRejected >= 2:
		return models.ConditionResult{Detail: fmt.Sprintf("%d of %d recent same-side signals rejected", sameRejected, same)}
	case len(outcomes) == 0:
		return models.ConditionResult{Favorable: true, Detail: "no history for asset"}
	default:
		return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("history clean (%d same-side, %d rejected)", same, sameRejected)}
	}
}

// EvaluateBreadthAlignment is favorable when the trend matches the side, is
// sideways, or breadth sits in the 45-55% neutral band.
func EvaluateBreadthAlignment(dir models.Direction, snap models.MarketDirectionSnapshot) models.ConditionResult {
	p := snap.BreadthPercentUp
	switch {
	case snap.BreadthTrend == models.TrendSideways:
		return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("breadth sideways at %.1f%%", p)}
	case p >= breadthNeutralLow && p <= breadthNeutralHigh:
		return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("breadth %.1f%% in neutral band", p)}
	case dir == models.DirectionLong && snap.BreadthTrend == models.TrendBullish,
		dir == models.DirectionShort && snap.BreadthTrend == models.TrendBearish:
		return models.ConditionResult{Favorable: true, Detail: fmt.Sprintf("breadth %s at %.1f%% confirms %s", snap.BreadthTrend, p, dir)}
	default:
		return models.ConditionResult{Detail: fmt.Sprintf("breadth %s at %.1f%% against %s", snap.BreadthTrend, p, dir)}
	}
}

// Tally fills FavorableCount and RequiredCount.
func Tally(c *models.ConditionEvaluation, strong bool) {
	n := 0
	for _, r := range []models.ConditionResult{c.MarketAligned, c.MomentumFavorable, c.AssetHistoryFavorable, c.BreadthAligned} {
		if r.Favorable {
			n++
		}
	}
	c.FavorableCount = n
	c.RequiredCount = RequiredFavorable(strong)
}

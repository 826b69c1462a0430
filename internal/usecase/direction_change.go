package usecase

import (
	"math"

	"SignalPilot/internal/domain/models"
)

// Notification kinds published to the sink.
const (
	EventDirectionChange = "direction_change"
	EventDecision        = "decision"
	EventExecution       = "execution"
	EventOrderUpdate     = "order_update"
)

const (
	breadthMoveThreshold    = 15.0
	confidenceMoveThreshold = 0.3
	epsilon                 = 1e-9
)

// DiffSnapshots compares two consecutive snapshots. A nil prev yields no change.
func DiffSnapshots(prev *models.MarketDirectionSnapshot, cur models.MarketDirectionSnapshot) models.DirectionChangeEvent {
	ev := models.DirectionChangeEvent{
		CurrentDirection: cur.AllowedDirection,
		DetectedAt:       cur.CreatedAt,
	}
	if prev == nil {
		ev.PreviousDirection = cur.AllowedDirection
		return ev
	}
	ev.PreviousDirection = prev.AllowedDirection
	ev.BreadthDelta = cur.BreadthPercentUp - prev.BreadthPercentUp
	ev.ConfidenceDelta = cur.Confidence - prev.Confidence

	var kinds []models.ChangeKind
	if prev.AllowedDirection != cur.AllowedDirection {
		sev := directionChangeSeverity(prev.AllowedDirection, cur.AllowedDirection)
		kinds = append(kinds, models.ChangeDirection)
		ev.Severity = maxSeverity(ev.Severity, sev)
		ev.RecommendClose = sev >= models.SeverityMedium
	}
	if move := math.Abs(ev.BreadthDelta); move > breadthMoveThreshold+epsilon {
		kinds = append(kinds, models.ChangeBreadthVolatility)
		ev.Severity = maxSeverity(ev.Severity, breadthMoveSeverity(move))
	}
	if math.Abs(ev.ConfidenceDelta) > confidenceMoveThreshold+epsilon {
		kinds = append(kinds, models.ChangeConfidenceShift)
		ev.Severity = maxSeverity(ev.Severity, models.SeverityMedium)
	}

	switch len(kinds) {
	case 0:
		return ev
	case 1:
		ev.Kind = kinds[0]
	default:
		ev.Kind = models.ChangeMultiple
	}
	ev.HasChange = true
	return ev
}

// directionChangeSeverity: a flip between opposite sides involving an exclusive
// state is High; other side flips, and any move into or out of an exclusive or
// conflict state, are Medium; the rest is Low.
func directionChangeSeverity(from, to models.AllowedDirection) models.Severity {
	fs, ts := from.Side(), to.Side()
	if fs != models.DirectionUnknown && ts == fs.Opposite() {
		if from.IsExclusive() || to.IsExclusive() {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	}
	if from.IsExclusive() || to.IsExclusive() ||
		from == models.AllowConflict || to == models.AllowConflict {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

func breadthMoveSeverity(move float64) models.Severity {
	switch {
	case move <= 25:
		return models.SeverityLow
	case move <= 35:
		return models.SeverityMedium
	default:
		return models.SeverityHigh
	}
}

func maxSeverity(a, b models.Severity) models.Severity {
	if b > a {
		return b
	}
	return a
}

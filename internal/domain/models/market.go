package models

import "time"

// SentimentClass labels the 0-100 fear/greed reading.
type SentimentClass string

const (
	SentimentExtremeFear  SentimentClass = "extreme_fear"
	SentimentFear         SentimentClass = "fear"
	SentimentNeutral      SentimentClass = "neutral"
	SentimentGreed        SentimentClass = "greed"
	SentimentExtremeGreed SentimentClass = "extreme_greed"
)

// ClassifySentiment maps a sentiment value to its class.
func ClassifySentiment(v float64) SentimentClass {
	switch {
	case v < 25:
		return SentimentExtremeFear
	case v < 45:
		return SentimentFear
	case v <= 55:
		return SentimentNeutral
	case v <= 75:
		return SentimentGreed
	default:
		return SentimentExtremeGreed
	}
}

// BreadthConfirmation is the discretised percent-of-basket-up reading.
type BreadthConfirmation string

const (
	BreadthStrongBullish BreadthConfirmation = "strong_bullish"
	BreadthBullish       BreadthConfirmation = "bullish"
	BreadthNeutral       BreadthConfirmation = "neutral"
	BreadthBearish       BreadthConfirmation = "bearish"
	BreadthStrongBearish BreadthConfirmation = "strong_bearish"
)

// IsBullish reports bullish or strong bullish.
func (b BreadthConfirmation) IsBullish() bool {
	return b == BreadthBullish || b == BreadthStrongBullish
}

// IsBearish reports bearish or strong bearish.
func (b BreadthConfirmation) IsBearish() bool {
	return b == BreadthBearish || b == BreadthStrongBearish
}

// IsStrong reports either strong variant.
func (b BreadthConfirmation) IsStrong() bool {
	return b == BreadthStrongBullish || b == BreadthStrongBearish
}

// Trend collapses confirmation into a three-way trend.
func (b BreadthConfirmation) Trend() BreadthTrend {
	switch {
	case b.IsBullish():
		return TrendBullish
	case b.IsBearish():
		return TrendBearish
	default:
		return TrendSideways
	}
}

type BreadthTrend string

const (
	TrendBullish  BreadthTrend = "bullish"
	TrendBearish  BreadthTrend = "bearish"
	TrendSideways BreadthTrend = "sideways"
)

// AllowedDirection is the market-wide verdict on which sides may be opened.
type AllowedDirection string

const (
	AllowLongOnly     AllowedDirection = "long_only"
	AllowShortOnly    AllowedDirection = "short_only"
	AllowLongAndShort AllowedDirection = "long_and_short"
	AllowPreferLong   AllowedDirection = "prefer_long"
	AllowPreferShort  AllowedDirection = "prefer_short"
	AllowConflict     AllowedDirection = "conflict"
)

// IsExclusive reports LongOnly or ShortOnly.
func (d AllowedDirection) IsExclusive() bool {
	return d == AllowLongOnly || d == AllowShortOnly
}

// Side returns the side the verdict leans to, or Unknown for neutral verdicts.
func (d AllowedDirection) Side() Direction {
	switch d {
	case AllowLongOnly, AllowPreferLong:
		return DirectionLong
	case AllowShortOnly, AllowPreferShort:
		return DirectionShort
	default:
		return DirectionUnknown
	}
}

// Blocks reports whether the verdict hard-blocks the given side.
func (d AllowedDirection) Blocks(side Direction) bool {
	switch d {
	case AllowLongOnly:
		return side == DirectionShort
	case AllowShortOnly:
		return side == DirectionLong
	default:
		return false
	}
}

// MarketDirectionSnapshot is one evaluation of the market direction monitor.
type MarketDirectionSnapshot struct {
	SentimentValue      float64             `json:"sentiment_value"`
	SentimentClass      SentimentClass      `json:"sentiment_class"`
	BreadthPercentUp    float64             `json:"breadth_percent_up"`
	BreadthConfirmation BreadthConfirmation `json:"breadth_confirmation"`
	BreadthTrend        BreadthTrend        `json:"breadth_trend"`
	AllowedDirection    AllowedDirection    `json:"allowed_direction"`
	Confidence          float64             `json:"confidence"`
	Degraded            bool                `json:"degraded"`
	CreatedAt           time.Time           `json:"created_at"`
}

type ChangeKind string

const (
	ChangeDirection         ChangeKind = "direction_change"
	ChangeBreadthVolatility ChangeKind = "breadth_volatility"
	ChangeConfidenceShift   ChangeKind = "confidence_shift"
	ChangeMultiple          ChangeKind = "multiple"
)

type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "none"
	}
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DirectionChangeEvent is the diff between two consecutive snapshots.
type DirectionChangeEvent struct {
	HasChange         bool             `json:"has_change"`
	Kind              ChangeKind       `json:"kind,omitempty"`
	Severity          Severity         `json:"severity"`
	RecommendClose    bool             `json:"recommend_close"`
	PreviousDirection AllowedDirection `json:"previous_direction"`
	CurrentDirection  AllowedDirection `json:"current_direction"`
	BreadthDelta      float64          `json:"breadth_delta"`
	ConfidenceDelta   float64          `json:"confidence_delta"`
	DetectedAt        time.Time        `json:"detected_at"`
}

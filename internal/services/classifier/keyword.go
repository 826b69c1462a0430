package classifier

import (
	"strings"
	"unicode"

	"SignalPilot/internal/domain/models"
)

// Keywords is the table a KeywordClassifier matches against. Entries are
// lower-cased single words or multi-word phrases.
type Keywords struct {
	Long  []string `yaml:"long"`
	Short []string `yaml:"short"`
}

// DefaultKeywords is used when no table is configured.
var DefaultKeywords = Keywords{
	Long:  []string{"long", "buy", "bullish", "bull", "calls", "breakout", "pump", "moon", "going up"},
	Short: []string{"short", "sell", "bearish", "bear", "puts", "breakdown", "dump", "going down"},
}

// KeywordClassifier infers a direction hint from free text.
type KeywordClassifier struct {
	long  [][]string
	short [][]string
}

// New builds a classifier. Empty sides of kw fall back to DefaultKeywords.
func New(kw Keywords) *KeywordClassifier {
	if len(kw.Long) == 0 {
		kw.Long = DefaultKeywords.Long
	}
	if len(kw.Short) == 0 {
		kw.Short = DefaultKeywords.Short
	}
	return &KeywordClassifier{long: phrases(kw.Long), short: phrases(kw.Short)}
}

// Classify returns Long or Short when exactly one side matches, Unknown otherwise.
func (c *KeywordClassifier) Classify(message string) models.Direction {
	words := tokenize(message)
	isLong := matchAny(words, c.long)
	isShort := matchAny(words, c.short)
	switch {
	case isLong && !isShort:
		return models.DirectionLong
	case isShort && !isLong:
		return models.DirectionShort
	default:
		return models.DirectionUnknown
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func phrases(list []string) [][]string {
	out := make([][]string, 0, len(list))
	for _, p := range list {
		if t := tokenize(p); len(t) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func matchAny(words []string, table [][]string) bool {
	for _, phrase := range table {
		for i := 0; i+len(phrase) <= len(words); i++ {
			if equalAt(words[i:], phrase) {
				return true
			}
		}
	}
	return false
}

func equalAt(words, phrase []string) bool {
	for j, p := range phrase {
		if words[j] != p {
			return false
		}
	}
	return true
}

package upstream

import (
	"context"
	"fmt"
	"strings"

	"SignalPilot/internal/domain/models"
	domsvc "SignalPilot/internal/domain/service"
)

const reasonerSystemPrompt = "You review crypto futures trade signals. " +
	"Answer on the first line with exactly YES to execute or NO to skip, " +
	"then one short paragraph of reasoning."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// LLMReasoner asks an OpenAI-compatible chat completions endpoint for a
// yes/no verdict on a scored signal.
type LLMReasoner struct {
	base  *HTTPServiceBase
	model string
}

func NewLLMReasoner(base *HTTPServiceBase, model string) *LLMReasoner {
	return &LLMReasoner{base: base, model: model}
}

func (r *LLMReasoner) Evaluate(ctx context.Context, req domsvc.ReasoningRequest) (domsvc.ReasoningVerdict, error) {
	body := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: reasonerSystemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		MaxTokens: 300,
	}
	var resp chatResponse
	if err := r.base.PostJSONWithRetry(ctx, "/chat/completions", body, &resp, 2); err != nil {
		return domsvc.ReasoningVerdict{}, err
	}
	if resp.Error != nil {
		return domsvc.ReasoningVerdict{}, fmt.Errorf("reasoner error %s: %s", resp.Error.Type, resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return domsvc.ReasoningVerdict{}, fmt.Errorf("reasoner returned no choices")
	}
	return ParseVerdict(resp.Choices[0].Message.Content)
}

// ParseVerdict reads YES or NO from the first non-empty line.
func ParseVerdict(text string) (domsvc.ReasoningVerdict, error) {
	text = strings.TrimSpace(text)
	first, rest, _ := strings.Cut(text, "\n")
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(first), ".:!*"))
	if f := strings.Fields(word); len(f) > 0 {
		word = strings.Trim(f[0], ".:,!*")
	}
	reasoning := strings.TrimSpace(rest)
	if reasoning == "" {
		reasoning = text
	}
	switch word {
	case "YES":
		return domsvc.ReasoningVerdict{Execute: true, Reasoning: reasoning}, nil
	case "NO":
		return domsvc.ReasoningVerdict{Execute: false, Reasoning: reasoning}, nil
	default:
		return domsvc.ReasoningVerdict{}, domsvc.ErrAmbiguousVerdict
	}
}

// BuildPrompt renders the signal, market state and scored conditions.
func BuildPrompt(req domsvc.ReasoningRequest) string {
	var b strings.Builder
	if s := req.Signal; s != nil {
		fmt.Fprintf(&b, "Signal: %s %s (strong=%t, source=%s)\n", s.Ticker, s.DirectionHint, s.IsStrong, s.Source)
		fmt.Fprintf(&b, "Message: %s\n", s.Message)
	}
	if m := req.Snapshot; m != nil {
		fmt.Fprintf(&b, "Market: sentiment %.0f (%s), breadth %.1f%% up (%s), allowed %s, confidence %.2f\n",
			m.SentimentValue, m.SentimentClass, m.BreadthPercentUp, m.BreadthConfirmation, m.AllowedDirection, m.Confidence)
	}
	if req.Oscillator != nil {
		fmt.Fprintf(&b, "RSI: %.1f\n", *req.Oscillator)
	}
	if c := req.Conditions; c != nil {
		fmt.Fprintf(&b, "Conditions %d/%d favorable (need %d):\n", c.FavorableCount, 4, c.RequiredCount)
		writeCondition(&b, "market", c.MarketAligned)
		writeCondition(&b, "momentum", c.MomentumFavorable)
		writeCondition(&b, "history", c.AssetHistoryFavorable)
		writeCondition(&b, "breadth", c.BreadthAligned)
	}
	b.WriteString("Should this trade be executed?")
	return b.String()
}

func writeCondition(b *strings.Builder, name string, r models.ConditionResult) {
	mark := "-"
	if r.Favorable {
		mark = "+"
	}
	fmt.Fprintf(b, "  %s %s: %s\n", mark, name, r.Detail)
}

package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Operations a model may request.
const (
	OpBuy   = "buy"
	OpSell  = "sell"
	OpHold  = "hold"
	OpClose = "close"
)

// ErrNoDecisions is returned when no decisions object can be extracted
// from a completion.
var ErrNoDecisions = errors.New("agent: no decisions found in model output")

// Decision is one parsed trade instruction.
type Decision struct {
	Operation       string          `json:"operation"`
	Symbol          string          `json:"symbol"`
	Portion         decimal.Decimal `json:"target_portion_of_balance"`
	Leverage        int             `json:"leverage"`
	MaxPrice        decimal.Decimal `json:"max_price"`
	MinPrice        decimal.Decimal `json:"min_price"`
	StopLossPrice   decimal.Decimal `json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `json:"take_profit_price"`
	Reason          string          `json:"reason"`
	TradingStrategy string          `json:"trading_strategy"`
}

// UnmarshalJSON tolerates fractional leverage values ("leverage": 2.0)
// that strict int decoding would reject.
func (d *Decision) UnmarshalJSON(b []byte) error {
	type alias Decision
	aux := struct {
		Leverage json.Number `json:"leverage"`
		*alias
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Leverage != "" {
		f, err := aux.Leverage.Float64()
		if err != nil {
			return fmt.Errorf("agent: leverage %q: %w", aux.Leverage, err)
		}
		d.Leverage = int(f)
	}
	return nil
}

type decisionEnvelope struct {
	Decisions []Decision `json:"decisions"`
}

// ParseDecisions extracts the decisions array from raw model output.
// Models wrap JSON in code fences or prose despite instructions, so
// extraction is lenient: fences are stripped and the outermost JSON
// object is located by brace scanning before unmarshaling.
func ParseDecisions(raw string) ([]Decision, error) {
	cleaned := stripFences(raw)

	obj := extractObject(cleaned)
	if obj == "" {
		return nil, ErrNoDecisions
	}

	var env decisionEnvelope
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return nil, fmt.Errorf("agent: decode decisions: %w", err)
	}
	if env.Decisions == nil {
		return nil, ErrNoDecisions
	}

	for i := range env.Decisions {
		env.Decisions[i].Operation = strings.ToLower(strings.TrimSpace(env.Decisions[i].Operation))
		env.Decisions[i].Symbol = strings.ToUpper(strings.TrimSpace(env.Decisions[i].Symbol))
	}
	return env.Decisions, nil
}

// stripFences removes markdown code fences and any language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	// Fences present but empty; fall back to the raw text with fence
	// markers removed.
	return strings.ReplaceAll(s, "```", "")
}

// extractObject returns the first balanced top-level JSON object,
// respecting strings and escapes.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}

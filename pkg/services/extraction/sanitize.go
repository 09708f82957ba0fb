package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Strategy selects how the sanitizer locates a JSON payload in a model response
type Strategy string

const (
	// StrategyFence captures the interior of a markdown code fence.
	StrategyFence Strategy = "fence"
	// StrategyBoundary takes the span from the first opening bracket to the
	// last closing bracket of the same kind.
	StrategyBoundary Strategy = "boundary"
	// StrategyAuto tries the fence first and falls back to the boundary scan.
	StrategyAuto Strategy = "auto"
)

// ParseStrategy maps a configuration value to a Strategy
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFence:
		return StrategyFence, nil
	case StrategyBoundary:
		return StrategyBoundary, nil
	case StrategyAuto, "":
		return StrategyAuto, nil
	}
	return "", fmt.Errorf("unknown sanitize strategy %q", s)
}

// fencedJSON matches a fenced block, optionally tagged, whose interior is a
// bracketed value. The interior excludes the whitespace around it.
var fencedJSON = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\\r?\\n?\\s*([\\[{].*?[\\]}])\\s*```")

// Payload is the sanitizer's best guess at a JSON value inside a response.
// Found is false when the response holds nothing that looks like one.
type Payload struct {
	Text     string
	Found    bool
	Strategy Strategy
	Repaired bool
}

// Sanitizer isolates a JSON payload from free-form model text
type Sanitizer struct {
	strategy Strategy
	repair   bool
}

// NewSanitizer creates a sanitizer. When repair is set, found payloads are
// passed through jsonrepair before being handed to the parser.
func NewSanitizer(strategy Strategy, repair bool) *Sanitizer {
	if strategy == "" {
		strategy = StrategyAuto
	}
	return &Sanitizer{strategy: strategy, repair: repair}
}

// Sanitize never fails; a response without a payload yields Found == false.
func (s *Sanitizer) Sanitize(raw string) Payload {
	var p Payload
	switch s.strategy {
	case StrategyFence:
		p = fenceCapture(raw)
	case StrategyBoundary:
		p = boundaryScan(raw)
	default:
		if p = fenceCapture(raw); !p.Found {
			p = boundaryScan(raw)
		}
	}
	if p.Found && s.repair {
		if fixed, err := jsonrepair.JSONRepair(p.Text); err == nil && fixed != p.Text {
			p.Text = fixed
			p.Repaired = true
		}
	}
	return p
}

func fenceCapture(raw string) Payload {
	m := fencedJSON.FindStringSubmatch(raw)
	if m == nil {
		return Payload{Strategy: StrategyFence}
	}
	return Payload{Text: m[1], Found: true, Strategy: StrategyFence}
}

func boundaryScan(raw string) Payload {
	start := strings.IndexAny(raw, "{[")
	if start < 0 {
		return Payload{Strategy: StrategyBoundary}
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(raw, closer)
	if end < start {
		return Payload{Strategy: StrategyBoundary}
	}
	return Payload{Text: raw[start : end+1], Found: true, Strategy: StrategyBoundary}
}

package submissions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type rawResult struct {
	OverallFeedback    *string         `json:"overall_feedback"`
	Suggestions        json.RawMessage `json:"suggestions"`
	CompatibilityScore json.RawMessage `json:"compatibility_score"`
	Compatibility      json.RawMessage `json:"compatibility"`
	MatchPercentage    json.RawMessage `json:"match_percentage"`
	Keywords           json.RawMessage `json:"keywords"`
}

// Normalize decodes an analysis response body. The score may arrive as a
// number, a numeric string or a percentage string such as "82%", under
// compatibility_score or the alternate compatibility / match_percentage fields.
// A single-element array wrapping the object is unwrapped.
func Normalize(body []byte) (Result, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var wrapped []json.RawMessage
		if err := json.Unmarshal(body, &wrapped); err != nil || len(wrapped) != 1 {
			return Result{}, fmt.Errorf("%w: expected a single result object", ErrMalformedResponse)
		}
		body = wrapped[0]
	}

	var raw rawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := Result{Keywords: []string{}}
	if raw.OverallFeedback != nil {
		out.OverallFeedback = strings.TrimSpace(*raw.OverallFeedback)
	}

	if isNull(raw.Suggestions) {
		return Result{}, fmt.Errorf("%w: suggestions missing", ErrMalformedResponse)
	}
	if err := json.Unmarshal(raw.Suggestions, &out.Suggestions); err != nil {
		return Result{}, fmt.Errorf("%w: suggestions: %v", ErrMalformedResponse, err)
	}
	if out.Suggestions == nil {
		out.Suggestions = []Suggestion{}
	}

	for _, field := range []json.RawMessage{raw.CompatibilityScore, raw.Compatibility, raw.MatchPercentage} {
		if isNull(field) {
			continue
		}
		score, err := parseScore(field)
		if err != nil {
			return Result{}, fmt.Errorf("%w: compatibility score: %v", ErrMalformedResponse, err)
		}
		out.CompatibilityScore = &score
		break
	}

	if !isNull(raw.Keywords) {
		var keywords []string
		if err := json.Unmarshal(raw.Keywords, &keywords); err != nil {
			return Result{}, fmt.Errorf("%w: keywords: %v", ErrMalformedResponse, err)
		}
		for _, k := range keywords {
			if k = strings.TrimSpace(k); k != "" {
				out.Keywords = append(out.Keywords, k)
			}
		}
	}
	return out, nil
}

func parseScore(raw json.RawMessage) (float64, error) {
	var value float64
	var num float64
	var str string
	switch {
	case json.Unmarshal(raw, &num) == nil:
		value = num
	case json.Unmarshal(raw, &str) == nil:
		s := strings.TrimSpace(str)
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("unparseable value %q", str)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("unsupported value %s", string(raw))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("non-finite value %s", string(raw))
	}
	return math.Min(100, math.Max(0, value)), nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harborview-health/intake-cli/internal/model"
)

// FormatError reports model output that could not be decoded into the
// expected answer shape. Raw carries the complete offending text so a
// failed run can be diagnosed from the error alone.
type FormatError struct {
	Raw string
	Err error
}

func (e *FormatError) Error() string {
	snippet := e.Raw
	if len(snippet) > 120 {
		snippet = snippet[:120] + "..."
	}
	if e.Err != nil {
		return fmt.Sprintf("pipeline: unusable extraction output %q: %v", snippet, e.Err)
	}
	return fmt.Sprintf("pipeline: unusable extraction output %q", snippet)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseAnswers decodes the model's raw output into answer entries. The
// output must carry a JSON array of {linkId, answer} objects, either
// bare or wrapped in an object under "answers"; code fences and stray
// prose around the JSON are tolerated. Any other shape is a
// *FormatError. Individual array elements are never rejected: malformed
// items decode to empty entries rather than failing the run.
func ParseAnswers(raw string) ([]model.AnswerEntry, error) {
	var decoded any
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &decoded); err != nil {
		return nil, &FormatError{Raw: raw, Err: err}
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any:
		wrapped, ok := v["answers"].([]any)
		if !ok {
			return nil, &FormatError{Raw: raw, Err: errors.New("object has no answers array")}
		}
		items = wrapped
	default:
		return nil, &FormatError{Raw: raw, Err: fmt.Errorf("unexpected top-level %T", decoded)}
	}

	entries := make([]model.AnswerEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, coerceEntry(item))
	}
	return entries, nil
}

// coerceEntry builds an answer entry from one loosely typed response
// item. An answer holding a JSON array becomes a candidate list; every
// other value becomes a scalar.
func coerceEntry(item any) model.AnswerEntry {
	m, ok := item.(map[string]any)
	if !ok {
		return model.NewScalarAnswer("", "")
	}

	linkID := coerceString(m["linkId"])
	if seq, ok := m["answer"].([]any); ok {
		candidates := make([]string, 0, len(seq))
		for _, c := range seq {
			candidates = append(candidates, coerceString(c))
		}
		return model.NewListAnswer(linkID, candidates)
	}
	return model.NewScalarAnswer(linkID, coerceString(m["answer"]))
}

// coerceString renders a loosely typed JSON value as text. Null and
// missing values render empty; numbers keep their natural form, so
// integral floats carry no decimal point; nested structures render as
// compact JSON rather than being dropped.
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// cleanJSON strips markdown fences and surrounding prose from a JSON
// payload. Best effort: when no payload can be located the input is
// returned trimmed and the decoder's failure becomes the signal.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	var start, end int
	switch {
	case objStart == -1 && arrStart == -1:
		return text
	case arrStart == -1 || (objStart != -1 && objStart < arrStart):
		start = objStart
		end = strings.LastIndex(text, "}")
	default:
		start = arrStart
		end = strings.LastIndex(text, "]")
	}
	if end > start {
		return text[start : end+1]
	}
	return text
}

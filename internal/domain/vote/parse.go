package vote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseJSON parses a JSON object into an Aggregate, keeping the document's key
// order. It fails only when data is not a JSON object; bad counts are clamped
// and reported as Issues.
func ParseJSON(data []byte, totalKeys ...string) (Aggregate, []Issue, error) {
	keys, raw, err := decodeOrdered(data)
	if err != nil {
		return Aggregate{}, nil, err
	}
	a, issues := build(keys, raw, totalKeys)
	return a, issues, nil
}

// decodeOrdered reads the top-level members of a JSON object in document order.
func decodeOrdered(data []byte) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, ErrNotObject
	}

	var keys []string
	raw := make(map[string]any)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrNotObject, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, ErrNotObject
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("%w: key %q: %w", ErrNotObject, key, err)
		}
		if _, seen := raw[key]; !seen {
			keys = append(keys, key)
		}
		raw[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	return keys, raw, nil
}

// Coerce turns a loosely typed count into a non-negative int. Values that are
// negative or not numeric yield 0 and an Issue.
func Coerce(key string, v any) (int, *Issue) {
	var (
		n  int
		ok bool
	)
	switch x := v.(type) {
	case int:
		n, ok = x, true
	case int32:
		n, ok = int(x), true
	case int64:
		n, ok = roundCount(float64(x))
	case float64:
		n, ok = roundCount(x)
	case float32:
		n, ok = roundCount(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err == nil {
			n, ok = roundCount(f)
		}
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil && !math.IsNaN(f) {
			n, ok = roundCount(f)
		}
	}
	if !ok {
		return 0, &Issue{Key: key, Raw: v, Reason: ReasonNotNumeric}
	}
	if n < 0 {
		return 0, &Issue{Key: key, Raw: v, Reason: ReasonNegative}
	}
	return n, nil
}

// Package codec decodes raw snapshot documents into typed aggregation inputs.
//
// Decoding is tolerant: counts that are negative or not numeric are clamped to 0,
// unusable keys and entries are dropped, and every such repair is returned as a
// Diagnostic. An error is returned only when the document itself is not a JSON
// object.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/elevenvotes/consensus/internal/domain/vote"
)

// Diagnostic describes one value repaired or dropped while decoding.
type Diagnostic struct {
	Field  string `json:"field"`
	Key    string `json:"key"`
	Raw    any    `json:"raw,omitempty"`
	Reason string `json:"reason"`
}

// Diagnostic reasons produced by this package in addition to vote's.
const (
	ReasonBadSlot   = "slot id outside 1..11"
	ReasonBadMinute = "minute is not a non-negative integer"
	ReasonNotObject = "value is not an object"
	ReasonNotArray  = "value is not an array"
	ReasonBadID     = "player id is not a string or number"
)

func fromIssues(field string, issues []vote.Issue) []Diagnostic {
	out := make([]Diagnostic, 0, len(issues))
	for _, is := range issues {
		out = append(out, Diagnostic{Field: field, Key: is.Key, Raw: is.Raw, Reason: is.Reason})
	}
	return out
}

// fields splits a top-level document into its raw members.
func fields(kind string, data []byte) (map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, kind, err)
	}
	return top, nil
}

// parseAggregate parses an optional nested vote object. A missing or null
// value yields an empty aggregate.
func parseAggregate(field string, raw json.RawMessage, totalKeys ...string) (vote.Aggregate, []Diagnostic, error) {
	if isNull(raw) {
		return vote.FromCounts(nil), nil, nil
	}
	a, issues, err := vote.ParseJSON(raw, totalKeys...)
	if err != nil {
		return vote.Aggregate{}, nil, fmt.Errorf("%w: %s: %w", ErrDecode, field, err)
	}
	return a, fromIssues(field, issues), nil
}

// aggregateField is parseAggregate that replaces a non-object with an empty
// aggregate and a diagnostic.
func aggregateField(field string, raw json.RawMessage, diags []Diagnostic) (vote.Aggregate, []Diagnostic) {
	a, more, err := parseAggregate(field, raw)
	if err != nil {
		return vote.FromCounts(nil), append(diags, Diagnostic{Field: field, Raw: rawValue(raw), Reason: ReasonNotObject})
	}
	return a, append(diags, more...)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// asObject reads raw as a JSON object. Null counts as an empty object.
func asObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// asArray reads raw as a JSON array. Null counts as an empty array.
func asArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, true
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

// rawValue decodes raw for diagnostics and coercion, keeping numbers exact.
func rawValue(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

// countField reads obj[key] as a count. An absent or null key is 0 without a
// diagnostic.
func countField(field, key string, obj map[string]json.RawMessage, diags []Diagnostic) (int, []Diagnostic) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return 0, diags
	}
	v := rawValue(raw)
	n, issue := vote.Coerce(key, v)
	if issue != nil {
		diags = append(diags, Diagnostic{Field: field, Key: key, Raw: v, Reason: issue.Reason})
	}
	return n, diags
}

// idField reads obj[key] as a player id given either as a string or a number.
func idField(field, key string, obj map[string]json.RawMessage, diags []Diagnostic) (string, []Diagnostic) {
	raw, ok := obj[key]
	if !ok || isNull(raw) {
		return "", diags
	}
	switch v := rawValue(raw).(type) {
	case string:
		return strings.TrimSpace(v), diags
	case json.Number:
		return v.String(), diags
	default:
		return "", append(diags, Diagnostic{Field: field, Key: key, Raw: v, Reason: ReasonBadID})
	}
}

// textField reads obj[key] as display text. Numbers are kept as written;
// anything else is dropped.
func textField(key string, obj map[string]json.RawMessage) string {
	raw, ok := obj[key]
	if !ok {
		return ""
	}
	switch v := rawValue(raw).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// parseMinute accepts decimal minute keys such as "0" or "87".
func parseMinute(key string) (int, bool) {
	m, err := strconv.Atoi(key)
	if err != nil || m < 0 {
		return 0, false
	}
	return m, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

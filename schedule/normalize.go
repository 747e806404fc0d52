package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// =============================================================================
// FIELD NORMALIZATION - String-or-structured JSON tolerance
// =============================================================================
// Weekday sets and quantity maps arrive from the store either as structured
// JSON ([1,4] / {"1":2}) or as a JSON string wrapping the same ("[1,4]").
// Both forms are folded into the canonical in-memory shape here, once;
// nothing past this boundary special-cases the serialized form.

// NormalizeWeekdays decodes a weekday set from either form. Empty input and
// JSON null both yield an empty set, which is a valid pattern that simply
// contributes nothing.
func NormalizeWeekdays(raw []byte) ([]int, error) {
	raw, empty := unwrap(raw)
	if empty {
		return nil, nil
	}

	var days []int
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("weekday set: %w", err)
	}
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("weekday set: day %d out of range", d)
		}
	}
	return days, nil
}

// NormalizeQuantityMap decodes a per-weekday quantity map from either form.
// Keys are weekday numbers serialized as JSON object keys (strings).
func NormalizeQuantityMap(raw []byte) (map[int]int, error) {
	raw, empty := unwrap(raw)
	if empty {
		return nil, nil
	}

	var byKey map[string]int
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("quantity map: %w", err)
	}
	if len(byKey) == 0 {
		return nil, nil
	}

	out := make(map[int]int, len(byKey))
	for k, qty := range byKey {
		day, err := strconv.Atoi(k)
		if err != nil || day < 0 || day > 6 {
			return nil, fmt.Errorf("quantity map: invalid weekday key %q", k)
		}
		out[day] = qty
	}
	return out, nil
}

// unwrap strips one level of JSON string encoding when present and reports
// whether the value is effectively empty (nil, "", "null").
func unwrap(raw []byte) ([]byte, bool) {
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return nil, true
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			if inner == "" || inner == "null" {
				return nil, true
			}
			return []byte(inner), false
		}
	}
	return raw, false
}

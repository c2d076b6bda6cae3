package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValidationError reports a malformed configuration value
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for field %q: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NormalizeRange normalizes a range-capable value.
//
// A scalar becomes a one element list, a list is returned unchanged, and a
// range written as "start:stop[:step]" or {start, stop[, step]} becomes the
// single element list ["start:stop:step"]. Failures are *ValidationError.
func NormalizeRange(field string, value any) ([]any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, ":") {
			return nil, invalid(field, `a string must be in the format "start:stop:step"`)
		}
		parts := strings.Split(v, ":")
		switch len(parts) {
		case 2:
			return normalizeRangeMapping(field, map[string]any{"start": parts[0], "stop": parts[1]})
		case 3:
			return normalizeRangeMapping(field, map[string]any{"start": parts[0], "stop": parts[1], "step": parts[2]})
		default:
			return nil, invalid(field, `a string must be in the format "start:stop:step"`)
		}
	case map[string]any:
		return normalizeRangeMapping(field, v)
	case []any:
		return v, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	default:
		n, err := toInt(value)
		if err != nil {
			return nil, invalid(field, "%v", err)
		}
		return []any{n}, nil
	}
}

func normalizeRangeMapping(field string, m map[string]any) ([]any, error) {
	_, hasStart := m["start"]
	_, hasStop := m["stop"]
	_, hasStep := m["step"]
	twoKeys := len(m) == 2 && hasStart && hasStop
	threeKeys := len(m) == 3 && hasStart && hasStop && hasStep
	if !twoKeys && !threeKeys {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		return nil, invalid(field, `a mapping must contain only "start" and "stop" with an optional "step", got %v`, keys)
	}

	start, err := toInt(m["start"])
	if err != nil {
		return nil, invalid(field, "start: %v", err)
	}
	stop, err := toInt(m["stop"])
	if err != nil {
		return nil, invalid(field, "stop: %v", err)
	}
	step := 1
	if hasStep {
		if step, err = toInt(m["step"]); err != nil {
			return nil, invalid(field, "step: %v", err)
		}
	}
	if start > stop {
		return nil, invalid(field, "start (%d) must not exceed stop (%d)", start, stop)
	}
	if step <= 0 {
		return nil, invalid(field, "step must be positive, got %d", step)
	}
	return []any{fmt.Sprintf("%d:%d:%d", start, stop, step)}, nil
}

// MaxRangeValues bounds the number of values a single field may expand to
const MaxRangeValues = 10000

// ExpandRange expands a normalized list into integers. Range strings expand to
// start, start+step, ... up to and including stop. Expansions longer than
// MaxRangeValues are rejected.
func ExpandRange(field string, values []any) ([]int, error) {
	if len(values) > MaxRangeValues {
		return nil, invalid(field, "expands to more than %d values", MaxRangeValues)
	}
	out := make([]int, 0, len(values))
	for _, v := range values {
		s, isString := v.(string)
		if !isString || !strings.Contains(s, ":") {
			n, err := toInt(v)
			if err != nil {
				return nil, invalid(field, "%v", err)
			}
			out = append(out, n)
			continue
		}
		normalized, err := NormalizeRange(field, s)
		if err != nil {
			return nil, err
		}
		var start, stop, step int
		if _, err := fmt.Sscanf(normalized[0].(string), "%d:%d:%d", &start, &stop, &step); err != nil {
			return nil, invalid(field, "malformed range %q", s)
		}
		steps, ok := rangeSteps(start, stop, step)
		if !ok || steps >= uint64(MaxRangeValues-len(out)) {
			return nil, invalid(field, "expands to more than %d values", MaxRangeValues)
		}
		// start+i*step lies in [start, stop], so wrapping products still land on it
		for i := 0; i <= int(steps); i++ {
			out = append(out, start+i*step)
		}
	}
	return out, nil
}

// rangeSteps counts the steps from start to the last value <= stop. The
// difference is taken in uint64 so the full int span does not overflow.
func rangeSteps(start, stop, step int) (uint64, bool) {
	if start > stop || step <= 0 {
		return 0, false
	}
	return (uint64(stop) - uint64(start)) / uint64(step), true
}

// NormalizeAndExpand normalizes a raw value and expands it into integers
func NormalizeAndExpand(field string, value any) ([]int, error) {
	normalized, err := NormalizeRange(field, value)
	if err != nil {
		return nil, err
	}
	return ExpandRange(field, normalized)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, fmt.Errorf("value %d overflows int", n)
		}
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("value %d overflows int", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		// ints span [MinInt, -MinInt)
		if n < math.MinInt || n >= -math.MinInt {
			return 0, fmt.Errorf("value %v overflows int", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("value %v of type %T is not an integer", v, v)
	}
}

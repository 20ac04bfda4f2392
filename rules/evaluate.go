package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Evaluate runs a single field rule against the extracted claim fields and
// returns its verdict. It is a pure function: no shared state, safe to call
// concurrently for different rules over the same field map.
//
// A missing field always fails with ActualMissing, regardless of operator.
// The ordered operators (lte, lt, gte, gt) compare both sides as float64;
// if either side cannot be coerced the verdict fails. Equality compares
// booleans when the rule value is a bool, otherwise case-insensitive string
// forms.
func Evaluate(r *Rule, fields map[string]any) Verdict {
	v := Verdict{RuleID: r.ID, RuleName: r.Name}

	raw, ok := fields[r.Field]
	if !ok || raw == nil {
		v.Actual = ActualMissing
		return v
	}
	v.Actual = raw

	switch {
	case r.Operator.Ordered():
		actual, okA := toFloat(raw)
		expected, okE := toFloat(r.Value)
		if !okA || !okE {
			return v
		}
		switch r.Operator {
		case OpLte:
			v.Passed = actual <= expected
		case OpLt:
			v.Passed = actual < expected
		case OpGte:
			v.Passed = actual >= expected
		case OpGt:
			v.Passed = actual > expected
		}
	case r.Operator == OpEq:
		if want, isBool := r.Value.(bool); isBool {
			got, okB := toBool(raw)
			v.Passed = okB && got == want
		} else {
			v.Passed = strings.EqualFold(stringForm(raw), stringForm(r.Value))
		}
	}
	// Unrecognized operators fall through with Passed == false.
	return v
}

// toFloat coerces the dynamically-typed field values the extraction
// collaborator produces (JSON numbers, numeric strings, bools) to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// toBool coerces a field value to a boolean. String forms follow
// strconv.ParseBool, so "true" compared against the boolean true passes by
// coercion rather than lexical match.
func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(x)))
		if err != nil {
			return false, false
		}
		return b, true
	case float64:
		return x != 0, true
	case int:
		return x != 0, true
	}
	return false, false
}

func stringForm(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

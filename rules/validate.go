package rules

import (
	"fmt"
	"regexp"
)

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateRule checks a rule definition before it is stored or evaluated.
// Field rules need a field name, a recognized operator, and a comparison
// value of a supported type; expression rules only need a non-empty
// expression (compilation is the Engine's job).
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule %s: name is required", r.ID)
	}
	if r.Weight < 0 || r.Weight > 100 {
		return fmt.Errorf("rule %s: weight %d outside range 0-100", r.ID, r.Weight)
	}

	if r.IsExpression() {
		return nil
	}

	if r.Field == "" {
		return fmt.Errorf("rule %s: field is required for non-expression rules", r.ID)
	}
	if err := validateFieldName(r.Field); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("rule %s: unrecognized operator %q", r.ID, r.Operator)
	}
	switch r.Value.(type) {
	case string, bool, float64, float32, int, int32, int64:
	default:
		return fmt.Errorf("rule %s: comparison value must be a string, number, or boolean", r.ID)
	}
	if r.Operator.Ordered() {
		if _, ok := toFloat(r.Value); !ok {
			return fmt.Errorf("rule %s: operator %s requires a numeric comparison value", r.ID, r.Operator)
		}
	}
	return nil
}

func validateFieldName(name string) error {
	if len(name) > 100 {
		return fmt.Errorf("field name length %d exceeds maximum of 100 characters", len(name))
	}
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("field name %q must start with a letter or underscore followed by letters, digits, or underscores", name)
	}
	return nil
}

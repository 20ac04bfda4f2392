package rules

import "time"

// Operator is the closed set of comparisons a field rule may perform.
// Anything outside this set never passes evaluation.
type Operator string

const (
	OpLte Operator = "lte"
	OpLt  Operator = "lt"
	OpGte Operator = "gte"
	OpGt  Operator = "gt"
	OpEq  Operator = "eq"
)

// Valid reports whether op is one of the recognized operators.
func (op Operator) Valid() bool {
	switch op {
	case OpLte, OpLt, OpGte, OpGt, OpEq:
		return true
	}
	return false
}

// Ordered reports whether op requires a numeric comparison.
func (op Operator) Ordered() bool {
	switch op {
	case OpLte, OpLt, OpGte, OpGt:
		return true
	}
	return false
}

// Rule describes a single business rule. A rule is either a field rule
// (Field/Operator/Value) or an expression rule (a CEL Expression over the
// extracted claim, compiled by the Engine); Expression takes precedence
// when set. Rules are immutable once handed to the evaluator and are
// shared read-only across concurrent evaluations.
type Rule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Field       string    `json:"field,omitempty"`
	Operator    Operator  `json:"operator,omitempty"`
	Value       any       `json:"value,omitempty"`
	Weight      int       `json:"weight"`
	Expression  string    `json:"expression,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

// IsExpression reports whether the rule is evaluated as a CEL expression
// rather than a field comparison.
func (r *Rule) IsExpression() bool {
	return r.Expression != ""
}

// ActualMissing is the sentinel recorded as a verdict's actual value when
// the rule's field is absent from the extracted claim.
const ActualMissing = "N/A"

// Verdict is the outcome of evaluating one rule against one claim.
// Created once per rule per invocation and immutable afterwards.
type Verdict struct {
	RuleID   string `json:"id"`
	RuleName string `json:"name"`
	Passed   bool   `json:"passed"`
	Actual   any    `json:"actual"`
}

package rules

// Well-known rule IDs from the default claims rule set. The decision
// aggregator keys its escalation routing off the high-value and fraud rules.
const (
	RuleAmountThreshold = "BR001"
	RuleHighValue       = "BR002"
	RuleCompleteness    = "BR003"
	RuleFraudIndicators = "BR004"
	RulePolicyActive    = "BR005"
	RuleDuplicateClaim  = "BR006"
)

// FieldIsDuplicate is the synthetic field the pipeline injects for the
// duplicate-claim rule before evaluation. Any rule comparing this field gets
// the injected value of the current invocation's duplicate check.
const FieldIsDuplicate = "isDuplicate"

// DefaultRules returns the stock claims rule set. Callers own the returned
// slice; the rules themselves are fresh copies on every call.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:          RuleAmountThreshold,
			Name:        "Claim Amount Threshold",
			Description: "Claims up to $5,000 qualify for auto-approval",
			Field:       "claimAmount",
			Operator:    OpLte,
			Value:       float64(5000),
			Weight:      30,
			Active:      true,
		},
		{
			ID:          RuleHighValue,
			Name:        "High-Value Escalation",
			Description: "Claims above $25,000 require senior review",
			Field:       "claimAmount",
			Operator:    OpLte,
			Value:       float64(25000),
			Weight:      40,
			Active:      true,
		},
		{
			ID:          RuleCompleteness,
			Name:        "Document Completeness",
			Description: "All required fields must be present",
			Field:       "completeness",
			Operator:    OpGte,
			Value:       float64(80),
			Weight:      25,
			Active:      true,
		},
		{
			ID:          RuleFraudIndicators,
			Name:        "Fraud Indicators",
			Description: "No fraud flags detected",
			Field:       "fraudScore",
			Operator:    OpLte,
			Value:       float64(30),
			Weight:      50,
			Active:      true,
		},
		{
			ID:          RulePolicyActive,
			Name:        "Policy Active Status",
			Description: "Policy must be active at time of claim",
			Field:       "policyStatus",
			Operator:    OpEq,
			Value:       "active",
			Weight:      35,
			Active:      true,
		},
		{
			ID:          RuleDuplicateClaim,
			Name:        "Duplicate Claim Check",
			Description: "No duplicate claim reference found",
			Field:       FieldIsDuplicate,
			Operator:    OpEq,
			Value:       false,
			Weight:      45,
			Active:      true,
		},
	}
}

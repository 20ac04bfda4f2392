package claims

import (
	"math"
	"sort"

	"github.com/ishitaakhatri/claims-iq/rules"
)

// Routing outcomes for an evaluated claim.
const (
	RoutingSTP      = "STP"
	RoutingEscalate = "ESCALATE"
)

// Escalation targets. A failed high-value or fraud rule routes to the
// senior manager queue; every other escalation goes to a specialist.
const (
	EscalateSenior     = "Senior Claims Manager"
	EscalateSpecialist = "Claims Specialist"
)

// Evaluation is the terminal artifact of one pipeline invocation.
type Evaluation struct {
	Results           []rules.Verdict `json:"results"`
	Routing           string          `json:"routing"`
	Confidence        int             `json:"confidence"`
	EscalationReasons []string        `json:"escalationReasons"`
	EscalateTo        string          `json:"escalateTo"`
}

// Aggregate reduces the verdict set to a routing decision. Verdicts
// arrive in whatever order the concurrent rule stages finished; the
// result is canonicalized by sorting on rule ID, so the reduction is
// independent of completion order. total is the configured rule count,
// used for the confidence denominator.
func Aggregate(verdicts []rules.Verdict, total int) Evaluation {
	results := make([]rules.Verdict, len(verdicts))
	copy(results, verdicts)
	sort.Slice(results, func(i, j int) bool {
		return results[i].RuleID < results[j].RuleID
	})

	passed := 0
	reasons := []string{}
	seniorEscalation := false
	for _, v := range results {
		if v.Passed {
			passed++
			continue
		}
		reasons = append(reasons, v.RuleName)
		if v.RuleID == rules.RuleHighValue || v.RuleID == rules.RuleFraudIndicators {
			seniorEscalation = true
		}
	}

	confidence := 0
	if total > 0 {
		confidence = int(math.Round(float64(passed) / float64(total) * 100))
	}

	routing := RoutingSTP
	if len(reasons) > 0 {
		routing = RoutingEscalate
	}

	escalateTo := EscalateSpecialist
	if seniorEscalation {
		escalateTo = EscalateSenior
	}

	return Evaluation{
		Results:           results,
		Routing:           routing,
		Confidence:        confidence,
		EscalationReasons: reasons,
		EscalateTo:        escalateTo,
	}
}

// Package claims implements the claim evaluation pipeline: field
// extraction, concurrent rule evaluation, duplicate detection, and the
// decision aggregation that routes a claim to straight-through
// processing or escalation.
package claims

// FieldClaimNumber is the field the duplicate detector keys on.
const FieldClaimNumber = "claimNumber"

// Fields is the flat key/value mapping an extractor produces for a
// claim document. Values are whatever JSON decoding yields (string,
// float64, bool, nil).
type Fields map[string]any

// Clone returns a shallow copy. The pipeline copies before injecting
// synthetic fields so the caller's mapping is never mutated.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	return out
}

// ClaimNumber returns the claim identifier field if it is present and
// is a non-empty string.
func (f Fields) ClaimNumber() (string, bool) {
	v, ok := f[FieldClaimNumber]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

package claims

import (
	"errors"
	"fmt"
)

// ErrIncompleteVerdicts signals that aggregation was reached with fewer
// verdicts than configured rules. It indicates a scheduling bug and
// aborts the invocation instead of aggregating partial results.
var ErrIncompleteVerdicts = errors.New("incomplete verdict set at aggregation")

// UpstreamError wraps a failure from one of the two extraction stages.
// It is client-visible: the caller learns which stage failed and why,
// and no rules were evaluated.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream stage %s failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

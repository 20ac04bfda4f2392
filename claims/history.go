package claims

import "sync"

// ClaimHistory supplies the one piece of cross-invocation state the
// pipeline consumes: the most recently processed claim. Implementations
// must be safe for concurrent use.
type ClaimHistory interface {
	// IsDuplicate reports whether the claim number in fields matches
	// the last recorded claim number. Both must be present; the match
	// is case-sensitive and exact.
	IsDuplicate(fields Fields) bool
	// Record overwrites the stored state with the current invocation's
	// field mapping.
	Record(fields Fields)
}

// MemoryClaimHistory remembers the last recorded claim in process
// memory. Access is serialized with a mutex so concurrent invocations
// see a consistent read-then-write.
type MemoryClaimHistory struct {
	mu   sync.Mutex
	last Fields
}

func NewMemoryClaimHistory() *MemoryClaimHistory {
	return &MemoryClaimHistory{}
}

func (h *MemoryClaimHistory) IsDuplicate(fields Fields) bool {
	current, ok := fields.ClaimNumber()
	if !ok {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.last == nil {
		return false
	}
	previous, ok := h.last.ClaimNumber()
	return ok && previous == current
}

func (h *MemoryClaimHistory) Record(fields Fields) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = fields.Clone()
}

// Reset clears the stored claim. Intended for tests and operational
// resets between batches.
func (h *MemoryClaimHistory) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = nil
}

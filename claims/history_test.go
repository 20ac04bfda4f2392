package claims

import (
	"fmt"
	"sync"
	"testing"
)

func TestHistoryEmptyIsNeverDuplicate(t *testing.T) {
	h := NewMemoryClaimHistory()
	if h.IsDuplicate(Fields{FieldClaimNumber: "C-100"}) {
		t.Error("empty history should never report a duplicate")
	}
}

func TestHistoryDetectsRepeatClaimNumber(t *testing.T) {
	h := NewMemoryClaimHistory()
	h.Record(Fields{FieldClaimNumber: "C-100", "claimAmount": 4000.0})

	if !h.IsDuplicate(Fields{FieldClaimNumber: "C-100"}) {
		t.Error("same claim number should be a duplicate")
	}
	if h.IsDuplicate(Fields{FieldClaimNumber: "C-101"}) {
		t.Error("different claim number should not be a duplicate")
	}
}

func TestHistoryMatchIsCaseSensitive(t *testing.T) {
	h := NewMemoryClaimHistory()
	h.Record(Fields{FieldClaimNumber: "C-100"})

	if h.IsDuplicate(Fields{FieldClaimNumber: "c-100"}) {
		t.Error("claim number comparison must be case-sensitive")
	}
}

func TestHistoryMissingClaimNumber(t *testing.T) {
	h := NewMemoryClaimHistory()
	h.Record(Fields{FieldClaimNumber: "C-100"})

	if h.IsDuplicate(Fields{"claimAmount": 4000.0}) {
		t.Error("fields without a claim number are never duplicates")
	}
	if h.IsDuplicate(Fields{FieldClaimNumber: 42.0}) {
		t.Error("a non-string claim number is never a duplicate")
	}
}

func TestHistoryRecordOverwrites(t *testing.T) {
	h := NewMemoryClaimHistory()
	h.Record(Fields{FieldClaimNumber: "C-100"})
	h.Record(Fields{FieldClaimNumber: "C-200"})

	if h.IsDuplicate(Fields{FieldClaimNumber: "C-100"}) {
		t.Error("record should overwrite, not accumulate")
	}
	if !h.IsDuplicate(Fields{FieldClaimNumber: "C-200"}) {
		t.Error("latest recorded claim should match")
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewMemoryClaimHistory()
	h.Record(Fields{FieldClaimNumber: "C-100"})
	h.Reset()

	if h.IsDuplicate(Fields{FieldClaimNumber: "C-100"}) {
		t.Error("reset should clear the stored claim")
	}
}

func TestHistoryRecordCopiesFields(t *testing.T) {
	h := NewMemoryClaimHistory()
	f := Fields{FieldClaimNumber: "C-100"}
	h.Record(f)
	f[FieldClaimNumber] = "C-999"

	if !h.IsDuplicate(Fields{FieldClaimNumber: "C-100"}) {
		t.Error("history must not alias the caller's field mapping")
	}
}

func TestHistoryConcurrentAccess(t *testing.T) {
	h := NewMemoryClaimHistory()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := Fields{FieldClaimNumber: fmt.Sprintf("C-%d", i)}
			h.Record(f)
			h.IsDuplicate(f)
		}(i)
	}
	wg.Wait()
}

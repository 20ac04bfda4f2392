package rules

import (
	"fmt"
	"sync"
	"testing"
)

func TestRuleStoreInterface(t *testing.T) {
	// Compile-time checks that both stores satisfy RuleStore.
	var _ RuleStore = (*InMemoryRuleStore)(nil)
	var _ RuleStore = (*PostgresRuleStore)(nil)
}

func TestInMemoryRuleStoreAddAndGet(t *testing.T) {
	store := NewInMemoryRuleStore()

	rule := &Rule{
		ID:       "test-1",
		Name:     "Test Rule",
		Field:    "claimAmount",
		Operator: OpLte,
		Value:    float64(5000),
		Active:   true,
	}

	if err := store.Add(rule); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	retrieved, err := store.Get("test-1")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if retrieved.ID != rule.ID || retrieved.Name != rule.Name {
		t.Errorf("retrieved rule = %s/%s, want %s/%s", retrieved.ID, retrieved.Name, rule.ID, rule.Name)
	}
	if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
		t.Error("Add() should stamp CreatedAt and UpdatedAt")
	}
}

func TestInMemoryRuleStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryRuleStore()

	first := &Rule{ID: "dup", Name: "First", Field: "claimAmount", Operator: OpLte, Value: float64(1), Active: true}
	second := &Rule{ID: "dup", Name: "Second", Field: "claimAmount", Operator: OpLte, Value: float64(2), Active: true}

	if err := store.Add(first); err != nil {
		t.Fatalf("first Add() should succeed: %v", err)
	}
	if err := store.Add(second); err == nil {
		t.Fatal("Add() with duplicate ID should return error")
	}

	retrieved, err := store.Get("dup")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if retrieved.Name != "First" {
		t.Errorf("rule should not have been overwritten, Name = %s", retrieved.Name)
	}
}

func TestInMemoryRuleStoreRejectsInvalidRule(t *testing.T) {
	store := NewInMemoryRuleStore()

	bad := &Rule{ID: "bad", Name: "Bad", Field: "claimAmount", Operator: Operator("between"), Value: float64(1)}
	if err := store.Add(bad); err == nil {
		t.Fatal("Add() should reject a rule with an unrecognized operator")
	}

	noField := &Rule{ID: "bad2", Name: "Bad", Operator: OpEq, Value: "x"}
	if err := store.Add(noField); err == nil {
		t.Fatal("Add() should reject a field rule without a field")
	}
}

func TestInMemoryRuleStoreListActiveSorted(t *testing.T) {
	store := NewInMemoryRuleStore()

	ids := []string{"BR003", "BR001", "BR002"}
	for _, id := range ids {
		r := &Rule{ID: id, Name: id, Field: "claimAmount", Operator: OpLte, Value: float64(1), Active: true}
		if err := store.Add(r); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}
	inactive := &Rule{ID: "BR000", Name: "off", Field: "claimAmount", Operator: OpLte, Value: float64(1), Active: false}
	if err := store.Add(inactive); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("ListActive() returned %d rules, want 3", len(active))
	}
	for i, want := range []string{"BR001", "BR002", "BR003"} {
		if active[i].ID != want {
			t.Errorf("active[%d].ID = %s, want %s", i, active[i].ID, want)
		}
	}
}

func TestInMemoryRuleStoreUpdatePreservesCreatedAt(t *testing.T) {
	store := NewInMemoryRuleStore()

	rule := &Rule{ID: "u1", Name: "Original", Field: "claimAmount", Operator: OpLte, Value: float64(1), Active: true}
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	created := rule.CreatedAt

	updated := &Rule{ID: "u1", Name: "Renamed", Field: "claimAmount", Operator: OpLte, Value: float64(2), Active: true}
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	retrieved, err := store.Get("u1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if retrieved.Name != "Renamed" {
		t.Errorf("Name = %s, want Renamed", retrieved.Name)
	}
	if !retrieved.CreatedAt.Equal(created) {
		t.Error("Update() should preserve CreatedAt")
	}
}

func TestInMemoryRuleStoreDelete(t *testing.T) {
	store := NewInMemoryRuleStore()

	rule := &Rule{ID: "d1", Name: "Doomed", Field: "claimAmount", Operator: OpLte, Value: float64(1), Active: true}
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Delete("d1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("d1"); err == nil {
		t.Fatal("Get() should fail after Delete()")
	}
	if err := store.Delete("d1"); err == nil {
		t.Fatal("Delete() of a missing rule should return error")
	}
}

func TestNewSeededRuleStoreHoldsDefaults(t *testing.T) {
	store := NewSeededRuleStore(DefaultRules())

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 6 {
		t.Fatalf("default rule set should have 6 active rules, got %d", len(active))
	}
	if active[0].ID != RuleAmountThreshold || active[5].ID != RuleDuplicateClaim {
		t.Errorf("default rules out of order: first %s last %s", active[0].ID, active[5].ID)
	}
}

func TestInMemoryRuleStoreConcurrentAccess(t *testing.T) {
	store := NewInMemoryRuleStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := &Rule{
				ID:       fmt.Sprintf("c-%d", i),
				Name:     "Concurrent",
				Field:    "claimAmount",
				Operator: OpLte,
				Value:    float64(i),
				Active:   true,
			}
			if err := store.Add(r); err != nil {
				t.Errorf("Add() failed: %v", err)
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ListActive(); err != nil {
				t.Errorf("ListActive() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(active) != 20 {
		t.Errorf("store should hold 20 rules, got %d", len(active))
	}
}

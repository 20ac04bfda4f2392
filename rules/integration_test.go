//go:build integration
// +build integration

package rules_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ishitaakhatri/claims-iq/rules"

	_ "github.com/lib/pq"
)

// setupTestDB starts a PostgreSQL container, runs the schema migration, and
// returns a live connection plus a cleanup func.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "claims_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=claims_test sslmode=disable", host, port.Port())

	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_create_rules.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// The migration seeds the default rule set; each test starts clean.
	if _, err := db.Exec("DELETE FROM rules"); err != nil {
		t.Fatalf("Failed to clear seed rules: %v", err)
	}

	cleanup := func() {
		db.Close()
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestPostgresRuleStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	ruleID := uuid.New().String()
	rule := &rules.Rule{
		ID:       ruleID,
		Name:     "amount-cap",
		Field:    "claimAmount",
		Operator: rules.OpLte,
		Value:    float64(5000),
		Weight:   30,
		Active:   true,
	}

	if err := store.Add(rule); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	retrieved, err := store.Get(ruleID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if retrieved.Name != "amount-cap" {
		t.Errorf("Expected name 'amount-cap', got '%s'", retrieved.Name)
	}
	if retrieved.Operator != rules.OpLte {
		t.Errorf("Expected operator lte, got '%s'", retrieved.Operator)
	}
	if got, ok := retrieved.Value.(float64); !ok || got != 5000 {
		t.Errorf("Expected comparison value 5000 as float64, got %v", retrieved.Value)
	}

	activeRules, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(activeRules) != 1 {
		t.Errorf("Expected 1 active rule, got %d", len(activeRules))
	}

	rule.Name = "amount-cap-renamed"
	rule.Active = false
	if err := store.Update(rule); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}

	updated, err := store.Get(ruleID)
	if err != nil {
		t.Fatalf("Failed to get updated rule: %v", err)
	}
	if updated.Name != "amount-cap-renamed" {
		t.Errorf("Expected updated name, got '%s'", updated.Name)
	}
	if updated.Active {
		t.Error("Expected rule to be inactive after update")
	}

	activeRules, err = store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(activeRules) != 0 {
		t.Errorf("Expected 0 active rules, got %d", len(activeRules))
	}

	if err := store.Delete(ruleID); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := store.Get(ruleID); err == nil {
		t.Error("Expected error when getting deleted rule, got nil")
	}
}

func TestPostgresRuleStore_ValueTypesRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	boolRule := &rules.Rule{
		ID:       "dup-check",
		Name:     "Duplicate Claim Check",
		Field:    rules.FieldIsDuplicate,
		Operator: rules.OpEq,
		Value:    false,
		Weight:   45,
		Active:   true,
	}
	stringRule := &rules.Rule{
		ID:       "policy-active",
		Name:     "Policy Active Status",
		Field:    "policyStatus",
		Operator: rules.OpEq,
		Value:    "active",
		Weight:   35,
		Active:   true,
	}

	for _, r := range []*rules.Rule{boolRule, stringRule} {
		if err := store.Add(r); err != nil {
			t.Fatalf("Failed to add rule %s: %v", r.ID, err)
		}
	}

	got, err := store.Get("dup-check")
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if v, ok := got.Value.(bool); !ok || v {
		t.Errorf("boolean comparison value should round-trip as bool false, got %T %v", got.Value, got.Value)
	}

	got, err = store.Get("policy-active")
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if v, ok := got.Value.(string); !ok || v != "active" {
		t.Errorf("string comparison value should round-trip, got %T %v", got.Value, got.Value)
	}
}

func TestPostgresRuleStore_ListActiveOrdering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)

	// Insert out of order; ListActive must return rule-ID order.
	for _, id := range []string{"BR003", "BR001", "BR002"} {
		r := &rules.Rule{
			ID:       id,
			Name:     id,
			Field:    "claimAmount",
			Operator: rules.OpLte,
			Value:    float64(100),
			Active:   true,
		}
		if err := store.Add(r); err != nil {
			t.Fatalf("Failed to add rule %s: %v", id, err)
		}
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("Expected 3 active rules, got %d", len(active))
	}
	for i, want := range []string{"BR001", "BR002", "BR003"} {
		if active[i].ID != want {
			t.Errorf("active[%d].ID = %s, want %s", i, active[i].ID, want)
		}
	}
}

func TestPostgresRuleStore_EngineIntegration(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := rules.NewPostgresRuleStore(db)
	for _, r := range rules.DefaultRules() {
		if err := store.Add(r); err != nil {
			t.Fatalf("Failed to seed rule %s: %v", r.ID, err)
		}
	}

	engine, err := rules.NewEngine(store)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	active, err := engine.ActiveRules()
	if err != nil {
		t.Fatalf("ActiveRules() failed: %v", err)
	}
	if len(active) != 6 {
		t.Fatalf("Expected 6 active rules, got %d", len(active))
	}

	fields := map[string]any{
		"claimAmount":  float64(4000),
		"completeness": float64(90),
		"fraudScore":   float64(10),
		"policyStatus": "active",
		"isDuplicate":  false,
	}
	for _, r := range active {
		v, err := engine.EvaluateRule(r, fields)
		if err != nil {
			t.Fatalf("EvaluateRule(%s) failed: %v", r.ID, err)
		}
		if !v.Passed {
			t.Errorf("rule %s should pass for the happy-path claim", r.ID)
		}
	}
}

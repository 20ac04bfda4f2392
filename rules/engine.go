package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ClaimVar is the CEL variable name expression rules use to reference the
// extracted claim fields, e.g. `claim.claimAmount <= 5000.0`.
const ClaimVar = "claim"

// Engine evaluates rules against extracted claim fields. Field rules go
// through the pure comparator in Evaluate; expression rules are compiled to
// CEL programs once and cached in an RWMutex-guarded map, so evaluation is
// safe for concurrent readers while compilation happens on mutations.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache
	programs map[string]cel.Program // rule ID -> compiled program
	mu       sync.RWMutex
}

// NewEngine creates an engine with the default CEL environment, which
// exposes the extracted claim as a single dynamic variable.
func NewEngine(store RuleStore) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable(ClaimVar, cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return NewEngineWithEnv(env, store)
}

// NewEngineWithEnv creates an engine with a custom CEL environment and
// compiles every active expression rule up front.
func NewEngineWithEnv(env *cel.Env, store RuleStore) (*Engine, error) {
	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		programs: make(map[string]cel.Program),
	}

	if err := en.compileActiveRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// CompileRule compiles a CEL expression and caches the program under the
// rule ID. The cost limit guards against runaway expressions.
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()

	return nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

func (en *Engine) compileActiveRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if !rule.IsExpression() {
			continue
		}
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)
	return nil
}

// ActiveRules returns the active rule list, serving from the cache when
// possible and repopulating it from the store on a miss.
func (en *Engine) ActiveRules() ([]*Rule, error) {
	if rules := en.cache.Get(); rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	en.cache.Set(rules)
	return rules, nil
}

// GetRule fetches a rule from the store by ID.
func (en *Engine) GetRule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// EvaluateRule evaluates a single rule against the extracted claim fields.
// Field rules never return an error: degradations (missing field,
// non-coercible value) resolve to a failed verdict. Expression rules return
// an error when the program cannot be obtained or evaluation itself fails;
// callers decide how to contain that.
func (en *Engine) EvaluateRule(rule *Rule, fields map[string]any) (Verdict, error) {
	if !rule.IsExpression() {
		return Evaluate(rule, fields), nil
	}

	en.mu.RLock()
	prog, cached := en.programs[rule.ID]
	en.mu.RUnlock()

	if !cached {
		// Rules supplied per invocation (overrides) are not in the store,
		// so compile on the spot without polluting the cache.
		var err error
		prog, err = en.compile(rule.Expression)
		if err != nil {
			return Verdict{}, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
	}

	out, _, err := prog.Eval(map[string]any{ClaimVar: fields})
	if err != nil {
		return Verdict{}, fmt.Errorf("rule %s: evaluation failed: %w", rule.ID, err)
	}

	v := Verdict{RuleID: rule.ID, RuleName: rule.Name, Actual: out.Value()}
	if matched, ok := out.Value().(bool); ok {
		v.Passed = matched
	}
	return v, nil
}

// AddRule validates, compiles (for expression rules), and stores a rule.
// If the store rejects it the compiled program is removed again so engine
// state stays consistent with the store.
func (en *Engine) AddRule(r *Rule) error {
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s already exists", r.ID)
	}

	if err := ValidateRule(r); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}
	if r.IsExpression() {
		if err := en.CompileRule(r.ID, r.Expression); err != nil {
			return fmt.Errorf("rule validation failed: %w", err)
		}
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()
	return nil
}

// UpdateRule validates and recompiles a rule, then updates the store.
func (en *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}
	if r.IsExpression() {
		if err := en.CompileRule(r.ID, r.Expression); err != nil {
			return fmt.Errorf("rule validation failed: %w", err)
		}
	} else {
		// A field rule may have replaced an expression rule under the same ID.
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.cache.Invalidate()
	return nil
}

// DeleteRule removes a rule from the store and drops its compiled program.
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

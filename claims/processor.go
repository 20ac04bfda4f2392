package claims

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ishitaakhatri/claims-iq/rules"
	"github.com/ishitaakhatri/claims-iq/workflow"
)

// Stage names of the fixed pipeline shape. Rule stages are named
// "rule_<id>" and sit between extraction and aggregation.
const (
	StageExtractText   = "extract_text"
	StageExtractFields = "extract_fields"
	StageAggregate     = "aggregate"
)

// Request is one claim evaluation invocation.
type Request struct {
	Document     []byte
	ContentType  string
	DocumentName string
	// RuleOverride, when non-empty, replaces the engine's active rule
	// set for this invocation only.
	RuleOverride []*rules.Rule
}

// Processor runs the claim evaluation pipeline: text extraction, field
// extraction, a concurrent fan-out of rule evaluations, and a single
// aggregation fan-in. A Processor is safe for concurrent use; each
// invocation gets its own verdict set and the only shared state is the
// ClaimHistory, which serializes internally.
type Processor struct {
	engine  *rules.Engine
	text    TextExtractor
	fields  FieldExtractor
	history ClaimHistory
	logger  *slog.Logger
}

func NewProcessor(engine *rules.Engine, text TextExtractor, fields FieldExtractor, history ClaimHistory, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = NewMemoryClaimHistory()
	}
	return &Processor{
		engine:  engine,
		text:    text,
		fields:  fields,
		history: history,
		logger:  logger,
	}
}

// Process evaluates a claim document and returns the routing decision.
func (p *Processor) Process(ctx context.Context, req Request) (*Evaluation, error) {
	return p.ProcessWithProgress(ctx, req, nil)
}

// ProcessWithProgress is Process with an optional stage event listener.
// Events are advisory: the returned Evaluation is authoritative whether
// or not anyone listens.
func (p *Processor) ProcessWithProgress(ctx context.Context, req Request, listener workflow.Listener) (*Evaluation, error) {
	ruleSet := req.RuleOverride
	if len(ruleSet) == 0 {
		active, err := p.engine.ActiveRules()
		if err != nil {
			return nil, fmt.Errorf("loading active rules: %w", err)
		}
		ruleSet = active
	}

	// Per-invocation run state, written by stages as they complete.
	var (
		text   string
		fields Fields

		mu       sync.Mutex
		verdicts = make(map[string]rules.Verdict, len(ruleSet))
	)

	addVerdict := func(v rules.Verdict) {
		mu.Lock()
		defer mu.Unlock()
		if _, exists := verdicts[v.RuleID]; exists {
			return
		}
		verdicts[v.RuleID] = v
	}

	var result Evaluation

	stages := []workflow.Stage{
		{
			Name: StageExtractText,
			Run: func(ctx context.Context) error {
				t, err := p.text.ExtractText(ctx, req.Document, req.ContentType)
				if err != nil {
					return err
				}
				text = t
				return nil
			},
		},
		{
			Name:      StageExtractFields,
			DependsOn: []string{StageExtractText},
			Run: func(ctx context.Context) error {
				f, err := p.fields.ExtractFields(ctx, text, req.DocumentName)
				if err != nil {
					return err
				}
				fields = f.Clone()
				if needsDuplicateCheck(ruleSet) {
					fields[rules.FieldIsDuplicate] = p.history.IsDuplicate(fields)
				}
				return nil
			},
		},
	}

	ruleStageNames := make([]string, 0, len(ruleSet))
	for _, rule := range ruleSet {
		rule := rule
		name := "rule_" + rule.ID
		ruleStageNames = append(ruleStageNames, name)
		stages = append(stages, workflow.Stage{
			Name:         name,
			DependsOn:    []string{StageExtractFields},
			AllowFailure: true,
			Run: func(ctx context.Context) error {
				v, err := p.engine.EvaluateRule(rule, fields)
				if err != nil {
					// The fan-in still needs a verdict for this rule;
					// a stage error must not starve aggregation.
					addVerdict(rules.Verdict{
						RuleID:   rule.ID,
						RuleName: rule.Name,
						Passed:   false,
						Actual:   fmt.Sprintf("evaluation error: %v", err),
					})
					p.logger.Warn("rule evaluation degraded",
						slog.String("ruleId", rule.ID),
						slog.String("error", err.Error()))
					return err
				}
				addVerdict(v)
				return nil
			},
		})
	}

	// Aggregation depends on extraction directly as well as on every rule
	// stage, so an empty rule set still runs the stages in pipeline order.
	stages = append(stages, workflow.Stage{
		Name:      StageAggregate,
		DependsOn: append([]string{StageExtractFields}, ruleStageNames...),
		Run: func(ctx context.Context) error {
			mu.Lock()
			collected := make([]rules.Verdict, 0, len(verdicts))
			for _, v := range verdicts {
				collected = append(collected, v)
			}
			mu.Unlock()

			if len(collected) != len(ruleSet) {
				return fmt.Errorf("%w: have %d verdicts, want %d",
					ErrIncompleteVerdicts, len(collected), len(ruleSet))
			}

			result = Aggregate(collected, len(ruleSet))
			p.history.Record(fields)
			return nil
		},
	})

	opts := []workflow.Option{}
	if listener != nil {
		opts = append(opts, workflow.WithListener(listener))
	}
	ex, err := workflow.New(stages, opts...)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}

	if err := ex.Run(ctx); err != nil {
		return nil, p.classify(err)
	}

	p.logger.Info("claim evaluated",
		slog.String("document", req.DocumentName),
		slog.String("routing", result.Routing),
		slog.Int("confidence", result.Confidence))
	return &result, nil
}

// classify maps an executor failure onto the pipeline's error taxonomy:
// extraction failures are client-visible upstream errors, anything else
// surfaces as an opaque internal failure.
func (p *Processor) classify(err error) error {
	var stageErr *workflow.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case StageExtractText, StageExtractFields:
			return &UpstreamError{Stage: stageErr.Stage, Err: stageErr.Err}
		}
		if errors.Is(err, ErrIncompleteVerdicts) {
			return stageErr.Err
		}
	}
	return err
}

func needsDuplicateCheck(ruleSet []*rules.Rule) bool {
	for _, r := range ruleSet {
		if r.Field == rules.FieldIsDuplicate {
			return true
		}
		if r.IsExpression() && strings.Contains(r.Expression, rules.FieldIsDuplicate) {
			return true
		}
	}
	return false
}

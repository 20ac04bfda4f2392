// Package workflow runs a small directed-acyclic pipeline of named stages.
// Stages whose dependencies are complete are dispatched concurrently, so a
// set of stages sharing one predecessor fans out in parallel and a stage
// depending on all of them acts as the fan-in barrier.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the executor's understanding of a stage's lifecycle within one
// run: Pending → Ready → Running → {Completed | Failed}, or Skipped when an
// upstream failure makes the stage unreachable.
type State string

const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Status labels a progress event.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Event is a stage-lifecycle notification. Events are advisory: dropping or
// ignoring them never changes scheduling or the run's outcome.
type Event struct {
	RunID  string    `json:"runId"`
	Stage  string    `json:"stage"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Err    error     `json:"-"`
}

// Listener receives progress events. It is called from the executor's
// scheduling goroutine and must not block for long.
type Listener func(Event)

// Stage is one node of the pipeline.
type Stage struct {
	Name      string
	DependsOn []string

	// AllowFailure marks a stage whose failure is contained: the stage ends
	// in StateFailed but still satisfies its dependents, so a fan-in stage
	// downstream is released rather than starved.
	AllowFailure bool

	Run func(ctx context.Context) error
}

// StageError wraps a stage failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Executor runs a validated stage graph. The graph shape is fixed at
// construction; each Run executes it once with per-run state.
type Executor struct {
	stages   []Stage
	index    map[string]int
	listener Listener
}

// Option customizes the executor.
type Option func(*Executor)

// WithListener attaches a progress listener.
func WithListener(l Listener) Option {
	return func(e *Executor) {
		e.listener = l
	}
}

// New validates the stage graph (unique names, declared dependencies,
// no cycles) and returns an executor for it.
func New(stages []Stage, opts ...Option) (*Executor, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("workflow: at least one stage is required")
	}

	index := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("workflow: stage %d has no name", i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("workflow: stage %s has no run func", s.Name)
		}
		if _, dup := index[s.Name]; dup {
			return nil, fmt.Errorf("workflow: duplicate stage name %s", s.Name)
		}
		index[s.Name] = i
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("workflow: stage %s depends on undeclared stage %s", s.Name, dep)
			}
		}
	}
	if err := checkAcyclic(stages, index); err != nil {
		return nil, err
	}

	e := &Executor{stages: stages, index: index}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func checkAcyclic(stages []Stage, index map[string]int) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	marks := make([]int, len(stages))
	var visit func(int) error
	visit = func(i int) error {
		switch marks[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("workflow: dependency cycle through stage %s", stages[i].Name)
		}
		marks[i] = visiting
		for _, dep := range stages[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		marks[i] = done
		return nil
	}
	for i := range stages {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

type node struct {
	stage      *Stage
	state      State
	remaining  int
	dependents []int
}

type completion struct {
	idx int
	err error
}

// Run executes the graph once. The first failure of a stage without
// AllowFailure is fatal: its transitive dependents are skipped, the run
// context is cancelled, and any stages already in flight are awaited
// before Run returns the failure as a *StageError.
func (e *Executor) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nodes := make([]*node, len(e.stages))
	for i := range e.stages {
		nodes[i] = &node{
			stage:     &e.stages[i],
			state:     StatePending,
			remaining: len(e.stages[i].DependsOn),
		}
	}
	for i, s := range e.stages {
		for _, dep := range s.DependsOn {
			j := e.index[dep]
			nodes[j].dependents = append(nodes[j].dependents, i)
		}
	}

	done := make(chan completion, len(nodes))
	running := 0
	var firstErr error

	start := func(i int) {
		n := nodes[i]
		n.state = StateRunning
		running++
		e.emit(Event{RunID: runID, Stage: n.stage.Name, Status: StatusStarted, At: time.Now()})
		go func() {
			done <- completion{idx: i, err: runStage(ctx, n.stage)}
		}()
	}

	var skip func(int)
	skip = func(i int) {
		n := nodes[i]
		if n.state != StatePending && n.state != StateReady {
			return
		}
		n.state = StateSkipped
		e.emit(Event{RunID: runID, Stage: n.stage.Name, Status: StatusSkipped, At: time.Now()})
		for _, d := range n.dependents {
			skip(d)
		}
	}

	// release marks a dependent satisfied and starts it once every
	// predecessor is terminal, unless the run has already failed.
	release := func(i int) {
		n := nodes[i]
		if n.state != StatePending {
			return
		}
		n.remaining--
		if n.remaining > 0 {
			return
		}
		n.state = StateReady
		if firstErr != nil || ctx.Err() != nil {
			skip(i)
			return
		}
		start(i)
	}

	for i, n := range nodes {
		if n.remaining == 0 {
			n.state = StateReady
			start(i)
		}
	}

	for running > 0 {
		c := <-done
		running--
		n := nodes[c.idx]

		if c.err == nil {
			n.state = StateCompleted
			e.emit(Event{RunID: runID, Stage: n.stage.Name, Status: StatusCompleted, At: time.Now()})
			for _, d := range n.dependents {
				release(d)
			}
			continue
		}

		n.state = StateFailed
		e.emit(Event{RunID: runID, Stage: n.stage.Name, Status: StatusFailed, At: time.Now(), Err: c.err})

		if n.stage.AllowFailure {
			// Contained failure: dependents still become runnable.
			for _, d := range n.dependents {
				release(d)
			}
			continue
		}

		if firstErr == nil {
			firstErr = &StageError{Stage: n.stage.Name, Err: c.err}
			cancel()
		}
		for _, d := range n.dependents {
			skip(d)
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// runStage contains panics so one stage's bug cannot take down the run's
// bookkeeping. A panic surfaces as an ordinary stage failure.
func runStage(ctx context.Context, s *Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panicked: %v", r)
		}
	}()
	return s.Run(ctx)
}

func (e *Executor) emit(ev Event) {
	if e.listener != nil {
		e.listener(ev)
	}
}

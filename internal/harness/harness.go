package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/inkwell/internal/bus"
	"github.com/roach88/inkwell/internal/library"
	"github.com/roach88/inkwell/internal/ordering"
	"github.com/roach88/inkwell/internal/stats"
	"github.com/roach88/inkwell/internal/store"
	"github.com/roach88/inkwell/internal/testutil"
	"github.com/roach88/inkwell/internal/workspace"
)

// Completion cases recorded in the trace.
const (
	CaseOK                = "ok"
	CaseNotFound          = "not_found"
	CaseConstraint        = "constraint"
	CaseInvalidIndex      = "invalid_index"
	CaseInvalidOrder      = "invalid_order"
	CaseNoBookOpen        = "no_book_open"
	CaseReorderInProgress = "reorder_in_progress"
	CaseEmptyTitle        = "empty_title"
	CaseError             = "error"
)

// flushTimeout bounds the wait for a step's events to be delivered.
const flushTimeout = 5 * time.Second

// Harness is one scenario's wired core.
// It runs scenarios with a fixed clock and sequential event ids.
type Harness struct {
	store     *store.Store
	bus       *bus.Bus
	library   *library.Library
	workspace *workspace.Workspace
	stats     *stats.Engine
	clock     *testutil.FixedClock
	logger    *slog.Logger

	mu      sync.Mutex
	pending []bus.Event
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and start the bus
// 2. Execute setup steps, which must succeed
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and the store
func Run(scenario *Scenario) (*Result, error) {
	start, err := scenario.start()
	if err != nil {
		return nil, err
	}
	clk := testutil.NewFixedClock(start)

	st, err := store.Open(":memory:", store.WithClock(clk))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	b := bus.New(bus.WithClock(clk), bus.WithIDGenerator(testutil.NewSequentialIDs("event")))
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(runCtx)
	}()
	defer func() {
		b.Stop()
		cancel()
		<-done
	}()

	h := &Harness{
		store:     st,
		bus:       b,
		library:   library.New(st, b),
		workspace: workspace.New(st, b, workspace.WithClock(clk)),
		stats:     stats.New(st, b, stats.WithClock(clk)),
		clock:     clk,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	defer h.detach()
	unsubscribe := b.SubscribeAll(h.capture)
	defer unsubscribe()

	ctx := context.Background()
	if err := h.library.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Ctx:   ctx,
		Store: st,
		Stats: h.stats,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) detach() {
	h.workspace.Detach()
	h.library.Detach()
	h.stats.Detach()
}

// capture runs on the bus goroutine.
func (h *Harness) capture(_ context.Context, ev bus.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, ev)
	return nil
}

// executeSetup runs all setup steps. A failing setup step aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep, result *Result) error {
	for i, step := range setup {
		outcome, res, err := h.step(ctx, step.Action, step.Args, result)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Action, err)
		}
		if outcome != CaseOK {
			return fmt.Errorf("setup step %d (%s): completed with %s: %v", i, step.Action, outcome, res["error"])
		}
	}
	return nil
}

// executeFlow runs the flow steps and checks each completion against its
// expect clause. Mismatches are recorded as result errors.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		outcome, res, err := h.step(ctx, step.Invoke, step.Args, result)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		expect := step.Expect
		if expect == nil {
			expect = &ExpectClause{Case: CaseOK}
		}
		if outcome != expect.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %q, got %q (%v)",
				i, step.Invoke, expect.Case, outcome, res["error"]))
			continue
		}
		if !matchArgs(res, expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v",
				i, step.Invoke, expect.Result, res))
		}
	}
	return nil
}

// step invokes one action and records its invocation, the events it
// published and its completion. The returned error is reserved for harness
// failures; action errors become the completion case.
func (h *Harness) step(ctx context.Context, name string, args map[string]any, result *Result) (string, map[string]any, error) {
	act, ok := actions[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown action %q", name)
	}

	result.AddInvocationTrace(name, args)
	h.logger.Debug("invoking", "action", name, "args", args)

	res, actErr := act(ctx, h, Args(args))

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	if err := h.bus.Flush(flushCtx); err != nil {
		return "", nil, fmt.Errorf("flush bus: %w", err)
	}
	if err := h.drain(result); err != nil {
		return "", nil, err
	}

	outcome := caseOf(actErr)
	if actErr != nil {
		res = map[string]any{"error": actErr.Error()}
	}
	res, err := normalize(res)
	if err != nil {
		return "", nil, err
	}
	result.AddCompletionTrace(outcome, res)
	return outcome, res, nil
}

// drain moves captured events into the trace.
func (h *Harness) drain(result *Result) error {
	h.mu.Lock()
	events := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, ev := range events {
		payload, err := normalize(ev.Payload)
		if err != nil {
			return fmt.Errorf("event %s: %w", ev.Topic, err)
		}
		result.AddEventTrace(string(ev.Topic), payload)
	}
	return nil
}

// caseOf maps an action error to its completion case.
func caseOf(err error) string {
	switch {
	case err == nil:
		return CaseOK
	case store.IsNotFound(err):
		return CaseNotFound
	case store.IsConstraint(err):
		return CaseConstraint
	case errors.Is(err, ordering.ErrInvalidIndex):
		return CaseInvalidIndex
	case errors.Is(err, ordering.ErrInvalidOrder):
		return CaseInvalidOrder
	case errors.Is(err, workspace.ErrNoBookOpen):
		return CaseNoBookOpen
	case errors.Is(err, workspace.ErrReorderInProgress):
		return CaseReorderInProgress
	case errors.Is(err, library.ErrEmptyTitle):
		return CaseEmptyTitle
	default:
		return CaseError
	}
}

// normalize converts v to its JSON object form so that payloads, results
// and scenario values compare the same way. nil stays nil.
func normalize(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return out, nil
}

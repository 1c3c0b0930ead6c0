package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing/fstest"

	"github.com/roach88/cmsync/internal/reconcile"
	"github.com/roach88/cmsync/internal/source"
	"github.com/roach88/cmsync/internal/store"
	"github.com/roach88/cmsync/internal/testutil"
	"github.com/roach88/cmsync/internal/upsert"
)

// Harness executes one scenario over an isolated store.
type Harness struct {
	store  *store.Store
	engine *reconcile.Engine
	ids    *testutil.SequenceGenerator
	logger *slog.Logger
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the reconciliation stack. Default:
// logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with the fixture scope
// registered. Execution flow:
//  1. Create the store and register the scope
//  2. Wire the upserter over the scenario files
//  3. Reconcile each run's declaration, checking expectations and run
//     assertions
//  4. Evaluate scenario assertions
//
// The returned error is non-nil only when the harness itself cannot run;
// failing expectations are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.EnsureScope(ctx, testutil.Scope, "Guest", testutil.ScopeLocale); err != nil {
		return nil, fmt.Errorf("failed to register scope: %w", err)
	}

	fsys := fstest.MapFS{}
	for path, content := range scenario.Files {
		fsys[path] = &fstest.MapFile{Data: []byte(content)}
	}

	ids := testutil.NewSequenceGenerator("gen")
	up := upsert.New(st, source.New(fsys),
		upsert.WithLogger(o.logger),
		upsert.WithIDGenerator(ids),
	)
	h := &Harness{
		store:  st,
		engine: reconcile.New(up, reconcile.WithLogger(o.logger)),
		ids:    ids,
		logger: o.logger,
	}

	result := NewResult()
	actx := &AssertionContext{Store: st, Ctx: ctx}
	for i, run := range scenario.Runs {
		n := i + 1
		report := h.executeRun(ctx, run)
		result.Reports = append(result.Reports, report)

		if err := checkExpectations(report, run.Expect); err != nil {
			result.AddError(fmt.Sprintf("run %d: %v", n, err))
		}
		for _, msg := range EvaluateAssertions(result, run.Assertions, actx) {
			result.AddError(fmt.Sprintf("run %d: %s", n, msg))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeRun(ctx context.Context, run Run) *reconcile.Report {
	decl := run.Declaration
	report := h.engine.Reconcile(ctx, testutil.Scope, &decl)
	h.logger.Debug("scenario run finished",
		"items", len(report.Items),
		"generated_ids", h.ids.Issued(),
	)
	return report
}

// checkExpectations matches expect entries against the report in order.
// Each entry consumes the next item with the same phase and key.
func checkExpectations(report *reconcile.Report, expect []ExpectItem) error {
	next := 0
	for _, e := range expect {
		found := -1
		for i := next; i < len(report.Items); i++ {
			it := report.Items[i]
			if string(it.Phase) == e.Phase && it.Key == e.Key {
				found = i
				break
			}
		}
		if found < 0 {
			return &AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("%s item %q", e.Phase, e.Key),
				Actual:   "not found in report",
				Items:    report.Items,
			}
		}

		it := report.Items[found]
		if string(it.Outcome) != e.Outcome {
			return &AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("%s item %q %s", e.Phase, e.Key, e.Outcome),
				Actual:   fmt.Sprintf("%s (%s)", it.Outcome, it.Error),
				Items:    report.Items,
			}
		}
		if e.ErrorKind != "" && string(it.ErrKind) != e.ErrorKind {
			return &AssertionError{
				Type:     "expect",
				Expected: fmt.Sprintf("%s item %q error kind %s", e.Phase, e.Key, e.ErrorKind),
				Actual:   fmt.Sprintf("error kind %q", it.ErrKind),
				Items:    report.Items,
			}
		}
		next = found + 1
	}
	return nil
}

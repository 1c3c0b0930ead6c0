// Package reconcile converges a content store onto a declaration.
//
// The engine walks the declaration in dependency order: document
// definitions, display templates, record sets, articles, web folders.
// Permission and link steps run inside each item's upsert. Every item is
// attempted; a failing item is logged with a severity chosen from its
// error kind and the run moves on.
//
// Execution is single-threaded and sequential. Later phases depend on ids
// produced by earlier ones, so nothing runs concurrently. The run is not
// transactional: re-running the same declaration is the recovery path.
package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/upsert"
)

// Upserter converges single items. Implemented by *upsert.Upserter.
type Upserter interface {
	Definition(ctx context.Context, scope model.Scope, d model.DocumentDefinition) (*model.Artifact, upsert.Outcome, error)
	Template(ctx context.Context, scope model.Scope, t model.DisplayTemplate) (*model.Artifact, upsert.Outcome, error)
	RecordSet(ctx context.Context, scope model.Scope, r model.RecordSet) (*model.Artifact, upsert.Outcome, error)
	Article(ctx context.Context, scope model.Scope, a model.Article) (*model.Artifact, upsert.Outcome, error)
	Folder(ctx context.Context, scope model.Scope, f model.WebFolder) (*model.Artifact, upsert.Outcome, error)
}

// Engine runs reconciliations.
type Engine struct {
	upserter Upserter
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(u Upserter, opts ...Option) *Engine {
	e := &Engine{
		upserter: u,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// step is one declared item bound to its upsert call.
type step struct {
	phase Phase
	key   string
	run   func(ctx context.Context) (*model.Artifact, upsert.Outcome, error)
}

// plan flattens the declaration into steps in execution order.
func (e *Engine) plan(scope model.Scope, decl *model.Declaration) []step {
	var steps []step
	for _, d := range decl.DocumentDefinitions {
		steps = append(steps, step{PhaseDefinitions, d.Key, func(ctx context.Context) (*model.Artifact, upsert.Outcome, error) {
			return e.upserter.Definition(ctx, scope, d)
		}})
	}
	for _, t := range decl.DisplayTemplates {
		steps = append(steps, step{PhaseTemplates, t.Key, func(ctx context.Context) (*model.Artifact, upsert.Outcome, error) {
			return e.upserter.Template(ctx, scope, t)
		}})
	}
	for _, r := range decl.RecordSets {
		steps = append(steps, step{PhaseRecordSets, r.Key, func(ctx context.Context) (*model.Artifact, upsert.Outcome, error) {
			return e.upserter.RecordSet(ctx, scope, r)
		}})
	}
	for _, a := range decl.Articles {
		steps = append(steps, step{PhaseArticles, a.ItemKey(), func(ctx context.Context) (*model.Artifact, upsert.Outcome, error) {
			return e.upserter.Article(ctx, scope, a)
		}})
	}
	for _, f := range decl.WebFolders {
		steps = append(steps, step{PhaseFolders, f.Path, func(ctx context.Context) (*model.Artifact, upsert.Outcome, error) {
			return e.upserter.Folder(ctx, scope, f)
		}})
	}
	return steps
}

// Reconcile converges the store onto decl within scope.
//
// Reconcile never fails and never stops early on item errors. The returned
// report lists every declared item. If ctx is cancelled, the items not yet
// started are recorded as skipped.
func (e *Engine) Reconcile(ctx context.Context, scope model.Scope, decl *model.Declaration) *Report {
	report := &Report{Scope: scope}
	if decl == nil {
		decl = &model.Declaration{}
	}

	logger := e.logger.With("scope", scope.ID)
	steps := e.plan(scope, decl)
	logger.Info("reconciliation started", "items", len(steps))

	var current Phase
	cancelled := false
	for _, s := range steps {
		if s.phase != current {
			current = s.phase
			logger.Info("phase started", "phase", current)
		}

		if !cancelled {
			if err := ctx.Err(); err != nil {
				cancelled = true
				logger.Warn("reconciliation cancelled, skipping remaining items", "error", err)
			}
		}
		if cancelled {
			report.add(ItemResult{Phase: s.phase, Key: s.key, Outcome: OutcomeSkipped, Err: context.Cause(ctx)})
			continue
		}

		report.add(e.runStep(ctx, logger, s))
	}

	counts := report.Counts()
	logger.Info("reconciliation finished",
		"created", counts[OutcomeCreated],
		"updated", counts[OutcomeUpdated],
		"unchanged", counts[OutcomeUnchanged],
		"failed", counts[OutcomeFailed],
		"skipped", counts[OutcomeSkipped],
	)
	return report
}

func (e *Engine) runStep(ctx context.Context, logger *slog.Logger, s step) ItemResult {
	res := ItemResult{Phase: s.phase, Key: s.key}

	a, outcome, err := s.run(ctx)
	if a != nil {
		res.ID = a.ID
		res.Key = a.Key
	}
	if err != nil {
		// A cancelled context surfaces as an untagged error mid-item.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Outcome = OutcomeSkipped
			res.Err = err
			logger.Warn("item interrupted", "phase", s.phase, "key", s.key, "error", err)
			return res
		}
		res.Outcome = OutcomeFailed
		res.ErrKind = model.KindOf(err)
		res.Err = err
		logger.Log(ctx, severity(res.ErrKind), "item failed",
			"phase", s.phase,
			"key", s.key,
			"kind", res.ErrKind,
			"error", err,
		)
		return res
	}

	res.Outcome = Outcome(outcome)
	level := slog.LevelInfo
	if outcome == upsert.OutcomeUnchanged {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, "item "+string(outcome),
		"phase", s.phase,
		"key", res.Key,
		"id", res.ID,
	)
	return res
}

// severity maps an error kind to its log level. Reference problems are
// warnings; unreadable input and backend failures are errors.
func severity(kind model.ErrorKind) slog.Level {
	switch kind {
	case model.ErrDuplicateKey, model.ErrUnresolvedReference:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

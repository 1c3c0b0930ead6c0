// Package upsert converges single declared artifacts onto the content store.
//
// Every kind follows the same fetch → mutate → create-or-update routine
// (see apply). An update keeps the stored id. When the mutable fields hash
// to the fingerprint already stored, the write is skipped, so re-running a
// declaration against a converged store performs no artifact writes.
//
// Permissions, tags and related links are re-applied on every run. They
// are full replacements and converge on their own.
package upsert

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/roach88/cmsync/internal/assetlink"
	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/permission"
	"github.com/roach88/cmsync/internal/placeholder"
	"github.com/roach88/cmsync/internal/store"
)

// Outcome describes what an upsert did to the stored artifact.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Store is the content store surface used by the upserter and the
// collaborators it wires. Implemented by *store.Store.
type Store interface {
	FetchByKey(ctx context.Context, scopeID int64, kind model.Kind, className, key string) (*model.Artifact, error)
	Create(ctx context.Context, a *model.Artifact) (int64, error)
	Update(ctx context.Context, a *model.Artifact) error
	Reindex(ctx context.Context, id int64) error
	SetTags(ctx context.Context, entryID int64, tags []string) error

	locale.ScopeLocales
	permission.Grants
	assetlink.Assets
}

// Source reads declared files. Implemented by source.Dir.
type Source interface {
	ReadText(path string) (string, error)
}

// IDGenerator generates keys for articles declared without an id.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// Upserter creates or updates declared artifacts in one store.
type Upserter struct {
	store    Store
	source   Source
	locales  *locale.Resolver
	resolver *placeholder.Resolver
	perms    *permission.Reconciler
	defaults *permission.Defaults
	linker   *assetlink.Linker
	ids      IDGenerator
	logger   *slog.Logger
}

type options struct {
	logger    *slog.Logger
	ids       IDGenerator
	defaults  *permission.Defaults
	fallback  language.Tag
	maxPasses int
	kinds     []placeholder.Option
}

// Option configures an Upserter.
type Option func(*options)

// WithLogger sets the logger of the upserter and its collaborators.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithIDGenerator sets the article id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithDefaults sets the default permission tables.
// Default: permission.NewDefaults().
func WithDefaults(d *permission.Defaults) Option {
	return func(o *options) {
		o.defaults = d
	}
}

// WithLocaleFallback sets the locale used for scopes without a known
// default locale. Default: locale.DefaultFallback.
func WithLocaleFallback(tag language.Tag) Option {
	return func(o *options) {
		o.fallback = tag
	}
}

// WithMaxPasses sets the placeholder pass budget.
// Default: placeholder.DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(o *options) {
		o.maxPasses = n
	}
}

// WithPlaceholderKind registers an extra placeholder token kind.
func WithPlaceholderKind(name string, fn placeholder.KindFunc) Option {
	return func(o *options) {
		o.kinds = append(o.kinds, placeholder.WithKind(name, fn))
	}
}

// New creates an Upserter over s, reading declared files from src.
//
// The locale resolver, placeholder resolver, permission reconciler and
// related-asset linker are all wired over s.
func New(s Store, src Source, opts ...Option) *Upserter {
	o := options{
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
		fallback:  locale.DefaultFallback,
		maxPasses: placeholder.DefaultMaxPasses,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.defaults == nil {
		o.defaults = permission.NewDefaults()
	}

	resolverOpts := append([]placeholder.Option{
		placeholder.WithMaxPasses(o.maxPasses),
		placeholder.WithLogger(o.logger),
	}, o.kinds...)
	resolver := placeholder.NewResolver(s, resolverOpts...)

	return &Upserter{
		store:    s,
		source:   src,
		locales:  locale.NewResolver(s, locale.WithFallback(o.fallback), locale.WithLogger(o.logger)),
		resolver: resolver,
		perms:    permission.NewReconciler(s, permission.WithLogger(o.logger)),
		defaults: o.defaults,
		linker:   assetlink.NewLinker(s, resolver, assetlink.WithLogger(o.logger)),
		ids:      o.ids,
		logger:   o.logger,
	}
}

// target addresses one artifact by natural key.
type target struct {
	kind model.Kind

	// className filters the lookup and is the class of new artifacts.
	// Empty matches any class.
	className string

	key  string
	item string

	// alwaysCreate skips the lookup.
	alwaysCreate bool
}

// apply runs the fetch → mutate → create-or-update routine.
//
// mutate receives either a copy of the stored artifact (ID set) or a fresh
// artifact seeded with scope, kind, class and key (ID zero), and fills in
// the declared fields.
func (u *Upserter) apply(ctx context.Context, scope model.Scope, t target, mutate func(a *model.Artifact) error) (*model.Artifact, Outcome, error) {
	var existing *model.Artifact
	if !t.alwaysCreate {
		found, err := u.store.FetchByKey(ctx, scope.ID, t.kind, t.className, t.key)
		switch {
		case err == nil:
			existing = found
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, "", model.NewItemError(model.ErrPersistence, t.item, "fetch", err)
		}
	}

	a := existing.Clone()
	if a == nil {
		a = &model.Artifact{
			ScopeID:   scope.ID,
			Kind:      t.kind,
			ClassName: t.className,
			Key:       t.key,
			Version:   1,
			Status:    model.StatusApproved,
			UserID:    scope.UserID,
		}
	}
	if err := mutate(a); err != nil {
		return nil, "", err
	}
	normalizeText(a)
	a.Fingerprint = Fingerprint(a)

	if existing == nil {
		id, err := u.store.Create(ctx, a)
		if err != nil {
			return nil, "", writeError(t.item, "create", err)
		}
		a.ID = id
		return a, OutcomeCreated, nil
	}

	if existing.Fingerprint == a.Fingerprint {
		return a, OutcomeUnchanged, nil
	}
	if err := u.store.Update(ctx, a); err != nil {
		return nil, "", writeError(t.item, "update", err)
	}
	return a, OutcomeUpdated, nil
}

func writeError(item, op string, err error) error {
	if errors.Is(err, store.ErrDuplicateKey) {
		return model.NewItemError(model.ErrDuplicateKey, item, op, err)
	}
	return model.NewItemError(model.ErrPersistence, item, op, err)
}

// lookup fetches a dependency artifact, mapping a miss to an unresolved
// reference of item.
func (u *Upserter) lookup(ctx context.Context, scope model.Scope, kind model.Kind, className, key, item string) (*model.Artifact, error) {
	a, err := u.store.FetchByKey(ctx, scope.ID, kind, className, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, model.NewItemError(model.ErrUnresolvedReference, item, string(kind)+" "+key+" not found", err)
	}
	if err != nil {
		return nil, model.NewItemError(model.ErrPersistence, item, "fetch "+string(kind)+" "+key, err)
	}
	return a, nil
}

func (u *Upserter) read(item, path string) (string, error) {
	raw, err := u.source.ReadText(path)
	if err != nil {
		return "", model.NewItemError(model.ErrRead, item, "read "+path, err)
	}
	return raw, nil
}

func (u *Upserter) applyPermissions(ctx context.Context, scope model.Scope, resourceName string, id int64, class string, declared []model.RolePermission, defaults model.Policy, item string) error {
	if err := u.perms.Apply(ctx, resourceName, scope, id, class, model.PolicyOf(declared), defaults); err != nil {
		return model.NewItemError(model.ErrPersistence, item, "apply permissions", err)
	}
	return nil
}

// Package permission computes and applies role grants on reconciled
// resources.
//
// The effective grant table of a resource is the union of the roles named
// by its default table and by its declared overrides. An override replaces
// the default action list of its role in full. Applying a table replaces
// each mentioned role's grant, so re-applying converges instead of
// accumulating.
package permission

import (
	"context"
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/cmsync/internal/model"
)

// Defaults holds the default grant tables per resource family.
// Built once by NewDefaults; the tables are never mutated afterwards and
// the accessors hand out copies.
type Defaults struct {
	article    model.Policy
	definition model.Policy
	folder     model.Policy
}

// NewDefaults builds the built-in default tables.
func NewDefaults() *Defaults {
	return &Defaults{
		article: model.Policy{
			model.RoleOwner: {
				model.ActionView,
				model.ActionAddDiscussion,
				model.ActionDelete,
				model.ActionDeleteDiscussion,
				model.ActionExpire,
				model.ActionPermissions,
				model.ActionUpdate,
				model.ActionUpdateDiscussion,
			},
			model.RoleUser:  {model.ActionView},
			model.RoleGuest: {model.ActionView},
		},
		definition: model.Policy{
			model.RoleOwner: {
				model.ActionView,
				model.ActionDelete,
				model.ActionUpdate,
				model.ActionPermissions,
			},
			model.RoleUser:  {model.ActionView},
			model.RoleGuest: {model.ActionView},
		},
		folder: model.Policy{
			model.RoleOwner: {
				model.ActionView,
				model.ActionUpdate,
				model.ActionPermissions,
				model.ActionDelete,
				model.ActionAddSubfolder,
				model.ActionAddArticle,
				model.ActionSubscribe,
				model.ActionAccess,
			},
			model.RoleUser:  {model.ActionView},
			model.RoleGuest: {model.ActionView},
		},
	}
}

// Article returns the default table for articles.
func (d *Defaults) Article() model.Policy { return d.article.Clone() }

// DocumentDefinition returns the default table for document definitions.
func (d *Defaults) DocumentDefinition() model.Policy { return d.definition.Clone() }

// Folder returns the default table for web folders.
func (d *Defaults) Folder() model.Policy { return d.folder.Clone() }

// Effective merges overrides into defaults. A role present in overrides
// takes the override's actions exactly; other roles keep their defaults.
// Action lists are de-duplicated, keeping first occurrences in order.
func Effective(overrides, defaults model.Policy) model.Policy {
	out := make(model.Policy, len(defaults)+len(overrides))
	for role, actions := range defaults {
		out[role] = dedup(actions)
	}
	for role, actions := range overrides {
		out[role] = dedup(actions)
	}
	return out
}

func dedup(actions []string) []string {
	seen := mapset.NewThreadUnsafeSetWithSize[string](len(actions))
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		if seen.Add(a) {
			out = append(out, a)
		}
	}
	return out
}

// Grants persists role grants. Implemented by *store.Store.
type Grants interface {
	SetRolePermissions(ctx context.Context, companyID int64, className string, resourceID int64, role string, actions []string) error
}

// Reconciler applies effective grant tables.
type Reconciler struct {
	grants Grants
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// NewReconciler creates a Reconciler writing through grants.
func NewReconciler(grants Grants, opts ...Option) *Reconciler {
	r := &Reconciler{
		grants: grants,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply replaces the grants of every role in the effective table of one
// resource.
//
// resourceName labels the resource in logs and errors ("Article NEWS-1").
// resourceClass is the permission class the grants are stored under.
// Roles are applied in sorted order; the first failing role aborts the
// remaining ones and its error is returned.
func (r *Reconciler) Apply(ctx context.Context, resourceName string, scope model.Scope, resourceID int64, resourceClass string, overrides, defaults model.Policy) error {
	table := Effective(overrides, defaults)
	for _, role := range table.Roles() {
		if err := r.grants.SetRolePermissions(ctx, scope.CompanyID, resourceClass, resourceID, role, table[role]); err != nil {
			return fmt.Errorf("permissions for %s role %s: %w", resourceName, role, err)
		}
	}

	r.logger.Debug("permissions applied",
		"resource", resourceName,
		"class", resourceClass,
		"id", resourceID,
		"roles", len(table),
	)
	return nil
}

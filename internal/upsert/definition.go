package upsert

import (
	"context"
	"errors"

	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/store"
)

// Definition upserts a document definition.
//
// The schema is read and parsed on every run. The name map carries the
// scope default locale and, when the schema declares its own default
// language, that locale too. A declared parent is linked when it exists;
// a missing parent is logged and the current linkage kept. An undeclared
// parent leaves any existing linkage untouched.
func (u *Upserter) Definition(ctx context.Context, scope model.Scope, d model.DocumentDefinition) (*model.Artifact, Outcome, error) {
	item := "definition " + d.Key
	appliesTo := d.AppliesTo
	if appliesTo == "" {
		appliesTo = model.ClassArticle
	}

	raw, err := u.read(item, d.Path)
	if err != nil {
		return nil, "", err
	}
	schema, err := ParseSchema(raw)
	if err != nil {
		return nil, "", model.NewItemError(model.ErrParse, item, "parse schema "+d.Path, err)
	}

	scopeDefault := u.locales.DefaultLocale(ctx, scope)
	name := model.NameOrKey(d.Name, d.Key)
	nameMap := u.locales.BuildMap(nil, scopeDefault, name)
	if contentLocale, ok := schema.DefaultLocale(); ok {
		nameMap = locale.AddContentLocale(nameMap, contentLocale, scopeDefault, name)
	}

	var parentID int64
	parentFound := false
	if d.Parent != "" {
		parent, err := u.store.FetchByKey(ctx, scope.ID, model.KindDocumentDefinition, appliesTo, d.Parent)
		switch {
		case err == nil:
			parentID, parentFound = parent.ID, true
		case errors.Is(err, store.ErrNotFound):
			u.logger.Warn("parent definition not found, keeping current parent",
				"key", d.Key,
				"parent", d.Parent,
			)
		default:
			return nil, "", model.NewItemError(model.ErrPersistence, item, "fetch parent "+d.Parent, err)
		}
	}

	a, outcome, err := u.apply(ctx, scope, target{
		kind:      model.KindDocumentDefinition,
		className: appliesTo,
		key:       d.Key,
		item:      item,
	}, func(a *model.Artifact) error {
		a.NameMap = nameMap
		a.Body = raw
		if parentFound {
			a.ParentID = parentID
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	resourceClass := model.ClassDocumentDefinition + "-" + appliesTo
	if err := u.applyPermissions(ctx, scope, "Definition "+d.Key, a.ID, resourceClass,
		d.RolePermissions, u.defaults.DocumentDefinition(), item); err != nil {
		return a, outcome, err
	}
	return a, outcome, nil
}

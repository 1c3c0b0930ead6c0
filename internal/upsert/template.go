package upsert

import (
	"context"

	"github.com/roach88/cmsync/internal/model"
)

// Template upserts a display template.
//
// A template bound to a definition (DefinitionKey set) resolves the
// article definition on every run and applies to
// model.ClassDocumentDefinition unless told otherwise. An unbound template
// must name the class it applies to. Resource class defaults to
// model.ClassArticle.
//
// Template keys are unique across classes: a key already taken by a
// template of another class fails with model.ErrDuplicateKey.
func (u *Upserter) Template(ctx context.Context, scope model.Scope, t model.DisplayTemplate) (*model.Artifact, Outcome, error) {
	item := "template " + t.Key

	var boundID int64
	appliesTo := t.AppliesTo
	if t.DefinitionKey != "" {
		def, err := u.lookup(ctx, scope, model.KindDocumentDefinition, model.ClassArticle, t.DefinitionKey, item)
		if err != nil {
			return nil, "", err
		}
		boundID = def.ID
		if appliesTo == "" {
			appliesTo = model.ClassDocumentDefinition
		}
	}
	if appliesTo == "" {
		return nil, "", model.NewItemError(model.ErrParse, item, "template names neither an applies-to class nor a definition", nil)
	}

	resourceClass := t.ResourceClass
	if resourceClass == "" {
		resourceClass = model.ClassArticle
	}

	script, err := u.read(item, t.Path)
	if err != nil {
		return nil, "", err
	}

	scopeDefault := u.locales.DefaultLocale(ctx, scope)
	nameMap := u.locales.BuildMap(nil, scopeDefault, model.NameOrKey(t.Name, t.Key))
	var descMap model.LocaleMap
	if t.Description != "" {
		descMap = u.locales.BuildMap(nil, scopeDefault, t.Description)
	}

	return u.apply(ctx, scope, target{
		kind:      model.KindDisplayTemplate,
		className: appliesTo,
		key:       t.Key,
		item:      item,
	}, func(a *model.Artifact) error {
		a.BoundID = boundID
		a.DefinitionKey = t.DefinitionKey
		a.ResourceClass = resourceClass
		a.Language = t.Language
		a.Cacheable = t.Cacheable
		a.NameMap = nameMap
		a.DescriptionMap = descMap
		a.Body = script
		return nil
	})
}

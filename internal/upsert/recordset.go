package upsert

import (
	"context"

	"github.com/roach88/cmsync/internal/model"
)

// RecordSet upserts a record set, re-resolving and re-binding its
// record-set definition on every run.
func (u *Upserter) RecordSet(ctx context.Context, scope model.Scope, r model.RecordSet) (*model.Artifact, Outcome, error) {
	item := "record set " + r.Key

	def, err := u.lookup(ctx, scope, model.KindDocumentDefinition, model.ClassRecordSet, r.DefinitionKey, item)
	if err != nil {
		return nil, "", err
	}

	scopeDefault := u.locales.DefaultLocale(ctx, scope)
	nameMap := u.locales.BuildMap(nil, scopeDefault, model.NameOrKey(r.Name, r.Key))
	var descMap model.LocaleMap
	if r.Description != "" {
		descMap = u.locales.BuildMap(nil, scopeDefault, r.Description)
	}

	return u.apply(ctx, scope, target{
		kind:      model.KindRecordSet,
		className: model.ClassRecordSet,
		key:       r.Key,
		item:      item,
	}, func(a *model.Artifact) error {
		a.BoundID = def.ID
		a.DefinitionKey = r.DefinitionKey
		a.NameMap = nameMap
		a.DescriptionMap = descMap
		return nil
	})
}

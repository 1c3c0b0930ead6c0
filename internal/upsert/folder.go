package upsert

import (
	"context"

	"github.com/roach88/cmsync/internal/model"
)

// EnsureFolder returns the folder at path, creating it and every missing
// ancestor. The outcome describes the leaf.
//
// Folders are keyed by their normalized full path; a new folder is named
// after its last path segment.
func (u *Upserter) EnsureFolder(ctx context.Context, scope model.Scope, path string) (*model.Artifact, Outcome, error) {
	item := "folder " + path
	keys, err := model.FolderAncestors(path)
	if err != nil {
		return nil, "", model.NewItemError(model.ErrParse, item, "folder path", err)
	}

	scopeDefault := u.locales.DefaultLocale(ctx, scope)
	var (
		leaf    *model.Artifact
		outcome Outcome
	)
	var parentID int64
	for _, key := range keys {
		leaf, outcome, err = u.apply(ctx, scope, target{
			kind:      model.KindWebFolder,
			className: model.ClassFolder,
			key:       key,
			item:      "folder " + key,
		}, func(a *model.Artifact) error {
			if a.ID == 0 {
				a.ParentID = parentID
				a.NameMap = u.locales.BuildMap(nil, scopeDefault, model.FolderName(key))
			}
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		if outcome == OutcomeCreated {
			u.logger.Debug("created folder", "path", key, "id", leaf.ID)
		}
		parentID = leaf.ID
	}
	return leaf, outcome, nil
}

// Folder upserts a declared web folder: the folder and its ancestors are
// ensured, the leaf description is applied and the leaf permissions
// replaced.
func (u *Upserter) Folder(ctx context.Context, scope model.Scope, f model.WebFolder) (*model.Artifact, Outcome, error) {
	leaf, outcome, err := u.EnsureFolder(ctx, scope, f.Path)
	if err != nil {
		return nil, "", err
	}
	item := "folder " + leaf.Key

	if f.Description != "" {
		descMap := u.locales.BuildMap(nil, u.locales.DefaultLocale(ctx, scope), f.Description)
		updated, descOutcome, err := u.apply(ctx, scope, target{
			kind:      model.KindWebFolder,
			className: model.ClassFolder,
			key:       leaf.Key,
			item:      item,
		}, func(a *model.Artifact) error {
			a.DescriptionMap = descMap
			return nil
		})
		if err != nil {
			return nil, "", err
		}
		leaf = updated
		if outcome != OutcomeCreated {
			outcome = descOutcome
		}
	}

	if err := u.applyPermissions(ctx, scope, "Folder "+leaf.Key, leaf.ID, model.ClassFolder,
		f.RolePermissions, u.defaults.Folder(), item); err != nil {
		return leaf, outcome, err
	}
	return leaf, outcome, nil
}

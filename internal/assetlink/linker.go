// Package assetlink wires directed "related" links from an article to other
// asset entries.
package assetlink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/cmsync/internal/model"
)

// DefaultWeight is the weight of links created by the linker.
const DefaultWeight = 1

// LinkTypeRelated is the type of the links created by the linker.
const LinkTypeRelated = 0

// Assets is the asset-entry slice of the content store.
// Implemented by *store.Store.
type Assets interface {
	AssetEntry(ctx context.Context, className string, classPK int64) (int64, error)
	DeleteLinks(ctx context.Context, entryID int64) (int64, error)
	AddLink(ctx context.Context, userID, entryID1, entryID2 int64, linkType, weight int) error
}

// Resolver expands placeholder tokens. Implemented by
// *placeholder.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, scope model.Scope, companyID int64, raw, hint string) (string, error)
}

// Linker manages the outgoing related links of primary artifacts.
type Linker struct {
	assets   Assets
	resolver Resolver
	logger   *slog.Logger
}

// Option configures a Linker.
type Option func(*Linker)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Linker) {
		k.logger = l
	}
}

// NewLinker creates a Linker.
func NewLinker(assets Assets, resolver Resolver, opts ...Option) *Linker {
	k := &Linker{
		assets:   assets,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Result summarizes one Link call.
type Result struct {
	Cleared int64
	Linked  int
	Skipped int
}

// Link applies a related-asset declaration to primary.
//
// With ClearAll set, every existing outgoing link is removed first; a
// failure to clear is logged and linking continues. Each target is then
// resolved independently: its primary key is placeholder-expanded, parsed
// as a non-negative integer and mapped to its asset entry. A target that
// fails any step is logged and skipped.
//
// The returned error is non-nil only when the primary artifact has no asset
// entry, in which case nothing is linked.
func (k *Linker) Link(ctx context.Context, scope model.Scope, companyID int64, primary *model.Artifact, related *model.RelatedAssets) (Result, error) {
	var res Result
	if related == nil {
		return res, nil
	}

	primaryClass := model.ClassOf(primary.Kind)
	entryID, err := k.assets.AssetEntry(ctx, primaryClass, primary.ID)
	if err != nil {
		return res, fmt.Errorf("asset entry of %s %s: %w", primary.Kind, primary.Key, err)
	}

	if related.ClearAll {
		n, err := k.assets.DeleteLinks(ctx, entryID)
		if err != nil {
			k.logger.Error("failed to clear related assets",
				"key", primary.Key,
				"error", err,
			)
		} else {
			res.Cleared = n
			k.logger.Info("cleared related assets",
				"key", primary.Key,
				"removed", n,
			)
		}
	}

	for _, target := range related.Assets {
		if err := k.linkOne(ctx, scope, companyID, primary, entryID, target); err != nil {
			res.Skipped++
			k.logger.Warn("skipping related asset",
				"key", primary.Key,
				"class", target.Class,
				"primary_key", target.PrimaryKey,
				"error", err,
			)
			continue
		}
		res.Linked++
	}
	return res, nil
}

func (k *Linker) linkOne(ctx context.Context, scope model.Scope, companyID int64, primary *model.Artifact, entryID int64, target model.RelatedAsset) error {
	hint := fmt.Sprintf("related asset %s:%s of %s", target.Class, target.PrimaryKey, primary.Key)
	resolved, err := k.resolver.Resolve(ctx, scope, companyID, target.PrimaryKey, hint)
	if err != nil {
		return err
	}

	pk, err := strconv.ParseUint(strings.TrimSpace(resolved), 10, 63)
	if err != nil {
		return model.NewItemError(model.ErrParse, hint, "primary key is not a non-negative integer", err)
	}

	targetEntry, err := k.assets.AssetEntry(ctx, target.Class, int64(pk))
	if err != nil {
		return model.NewItemError(model.ErrUnresolvedReference, hint, "target has no asset entry", err)
	}

	if err := k.assets.AddLink(ctx, scope.UserID, entryID, targetEntry, LinkTypeRelated, DefaultWeight); err != nil {
		return err
	}
	k.logger.Debug("linked related asset",
		"key", primary.Key,
		"target_class", target.Class,
		"target_id", pk,
	)
	return nil
}

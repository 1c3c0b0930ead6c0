package upsert

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
)

// Article upserts a content article.
//
// An article with an explicit id is looked up by that id and updated in
// place (title, description, content, references, folder). An article
// without one gets a generated id and is created on every run.
//
// The content body is placeholder-resolved before storing. After a create
// or update the article is reindexed; tags, related links and permissions
// are re-applied on every run.
func (u *Upserter) Article(ctx context.Context, scope model.Scope, d model.Article) (*model.Artifact, Outcome, error) {
	item := "article " + d.ItemKey()

	folderID := u.articleFolder(ctx, scope, d)

	var definitionID int64
	if d.DefinitionKey != "" {
		def, err := u.lookup(ctx, scope, model.KindDocumentDefinition, model.ClassArticle, d.DefinitionKey, item)
		if err != nil {
			return nil, "", err
		}
		definitionID = def.ID
	}
	if d.TemplateKey != "" {
		if _, err := u.lookup(ctx, scope, model.KindDisplayTemplate, "", d.TemplateKey, item); err != nil {
			return nil, "", err
		}
	}

	var content string
	if d.Path != "" {
		raw, err := u.read(item, d.Path)
		if err != nil {
			return nil, "", err
		}
		content, err = u.resolver.Resolve(ctx, scope, scope.CompanyID, raw, "article content "+d.Path)
		if err != nil {
			return nil, "", err
		}
		if err := checkContent(content); err != nil {
			return nil, "", model.NewItemError(model.ErrParse, item, "content "+d.Path, err)
		}
	}

	scopeDefault := u.locales.DefaultLocale(ctx, scope)
	contentLocale, hasContentLocale := locale.Detect(content)

	title := model.NameOrKey(d.Title, d.ArticleID)
	titleMap := u.locales.BuildMap(d.TitleTranslations, scopeDefault, title)
	if hasContentLocale {
		titleMap = locale.AddContentLocale(titleMap, contentLocale, scopeDefault, title)
	}

	var descMap model.LocaleMap
	if desc := descriptionFallback(d); desc != "" {
		descMap = u.locales.BuildMap(d.DescriptionTranslations, scopeDefault, desc)
		if hasContentLocale {
			descMap = locale.AddContentLocale(descMap, contentLocale, scopeDefault, desc)
		}
	}

	t := target{
		kind:      model.KindArticle,
		className: model.ClassArticle,
		key:       d.ArticleID,
		item:      item,
	}
	if t.key == "" {
		t.key = u.ids.Generate()
		t.alwaysCreate = true
		u.logger.Info("article declared without id, generating one",
			"title", d.Title,
			"article_id", t.key,
		)
	}

	a, outcome, err := u.apply(ctx, scope, t, func(a *model.Artifact) error {
		a.BoundID = definitionID
		a.DefinitionKey = d.DefinitionKey
		a.TemplateKey = d.TemplateKey
		a.FolderID = folderID
		a.NameMap = titleMap
		a.DescriptionMap = descMap
		a.Body = content
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if outcome != OutcomeUnchanged {
		if err := u.store.Reindex(ctx, a.ID); err != nil {
			return a, outcome, model.NewItemError(model.ErrPersistence, item, "reindex", err)
		}
	}

	if err := u.applyTags(ctx, a, d.Tags, item); err != nil {
		return a, outcome, err
	}

	if _, err := u.linker.Link(ctx, scope, scope.CompanyID, a, d.RelatedAssets); err != nil {
		return a, outcome, model.NewItemError(model.ErrPersistence, item, "link related assets", err)
	}

	if err := u.applyPermissions(ctx, scope, "Article "+a.Key, a.ID, model.ClassArticle,
		d.RolePermissions, u.defaults.Article(), item); err != nil {
		return a, outcome, err
	}
	return a, outcome, nil
}

// articleFolder resolves the declared folder, creating it as needed.
// Failures are logged and place the article in the root folder.
func (u *Upserter) articleFolder(ctx context.Context, scope model.Scope, d model.Article) int64 {
	if strings.Trim(d.FolderPath, "/ ") == "" {
		return 0
	}
	folder, _, err := u.EnsureFolder(ctx, scope, d.FolderPath)
	if err != nil {
		u.logger.Warn("article folder unavailable, using root folder",
			"article", d.ItemKey(),
			"folder", d.FolderPath,
			"error", err,
		)
		return 0
	}
	return folder.ID
}

// descriptionFallback is the value stored under locales the translations
// do not cover: the declared description, else the first translated one.
func descriptionFallback(d model.Article) string {
	if d.Description != "" {
		return d.Description
	}
	for _, tr := range d.DescriptionTranslations {
		if tr.Value != "" {
			return tr.Value
		}
	}
	return ""
}

// applyTags replaces the tag set of the article's asset entry. Tags are
// trimmed, NFC normalized, lower-cased and de-duplicated.
func (u *Upserter) applyTags(ctx context.Context, a *model.Artifact, declared []string, item string) error {
	entry, err := u.store.AssetEntry(ctx, model.ClassArticle, a.ID)
	if err != nil {
		return model.NewItemError(model.ErrPersistence, item, "asset entry", err)
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	tags := make([]string, 0, len(declared))
	for _, tag := range declared {
		tag = strings.ToLower(norm.NFC.String(strings.TrimSpace(tag)))
		if tag != "" && seen.Add(tag) {
			tags = append(tags, tag)
		}
	}

	if err := u.store.SetTags(ctx, entry, tags); err != nil {
		return model.NewItemError(model.ErrPersistence, item, "set tags", err)
	}
	return nil
}

// checkContent rejects XML bodies that are not well-formed. Non-XML
// content is stored as is.
func checkContent(content string) error {
	if !strings.HasPrefix(strings.TrimSpace(content), "<") {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader(content))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if depth != 0 {
				return errors.New("unexpected end of content")
			}
			return nil
		}
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
}

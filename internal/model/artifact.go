package model

import (
	"maps"
	"slices"
)

// Kind identifies the artifact family a record belongs to.
type Kind string

const (
	KindDocumentDefinition Kind = "document_definition"
	KindDisplayTemplate    Kind = "display_template"
	KindRecordSet          Kind = "record_set"
	KindArticle            Kind = "article"
	KindWebFolder          Kind = "web_folder"
)

// Kinds lists every kind in reconciliation order.
var Kinds = []Kind{
	KindDocumentDefinition,
	KindDisplayTemplate,
	KindRecordSet,
	KindArticle,
	KindWebFolder,
}

// Class names address artifacts in asset entries, permissions and
// template bindings.
const (
	ClassArticle            = "content.Article"
	ClassRecordSet          = "content.RecordSet"
	ClassDocumentDefinition = "content.DocumentDefinition"
	ClassDisplayTemplate    = "content.DisplayTemplate"
	ClassFolder             = "content.Folder"
)

// ClassOf returns the asset class name of a kind.
func ClassOf(k Kind) string {
	switch k {
	case KindDocumentDefinition:
		return ClassDocumentDefinition
	case KindDisplayTemplate:
		return ClassDisplayTemplate
	case KindRecordSet:
		return ClassRecordSet
	case KindArticle:
		return ClassArticle
	case KindWebFolder:
		return ClassFolder
	default:
		return ""
	}
}

// StatusApproved is the only workflow status reconciliation writes.
const StatusApproved = "approved"

// LocaleMap maps canonical BCP 47 tags (e.g. "en-US") to localized text.
type LocaleMap map[string]string

// Clone returns an independent copy. A nil map clones to nil.
func (m LocaleMap) Clone() LocaleMap {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Locales returns the keys in sorted order.
func (m LocaleMap) Locales() []string {
	return slices.Sorted(maps.Keys(m))
}

// Artifact is a record held by the content store.
//
// Which fields carry meaning depends on Kind:
//   - document_definition: ClassName is the class it applies to, ParentID the
//     parent definition, Body the schema
//   - display_template: ClassName is the applies-to class, BoundID the bound
//     definition, ResourceClass, Language, Cacheable, Body the script
//   - record_set: BoundID is the definition id, DefinitionKey its key
//   - article: BoundID/DefinitionKey the definition, TemplateKey the template,
//     FolderID the containing folder, Body the resolved content
//   - web_folder: Key is the normalized full path, ParentID the parent folder
type Artifact struct {
	ID             int64     `json:"id"`
	ScopeID        int64     `json:"scope_id"`
	Kind           Kind      `json:"kind"`
	ClassName      string    `json:"class_name"`
	Key            string    `json:"key"`
	ParentID       int64     `json:"parent_id,omitempty"`
	BoundID        int64     `json:"bound_id,omitempty"`
	DefinitionKey  string    `json:"definition_key,omitempty"`
	TemplateKey    string    `json:"template_key,omitempty"`
	ResourceClass  string    `json:"resource_class,omitempty"`
	Language       string    `json:"language,omitempty"`
	Cacheable      bool      `json:"cacheable,omitempty"`
	NameMap        LocaleMap `json:"name_map"`
	DescriptionMap LocaleMap `json:"description_map,omitempty"`
	Body           string    `json:"body,omitempty"`
	FolderID       int64     `json:"folder_id,omitempty"`
	Version        int64     `json:"version"`
	Status         string    `json:"status"`
	UserID         int64     `json:"user_id"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
}

// Clone returns a deep copy so callers can mutate without touching the
// fetched record.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.NameMap = a.NameMap.Clone()
	c.DescriptionMap = a.DescriptionMap.Clone()
	return &c
}

// NameOrKey is the single fallback rule for optional display names: an
// empty name falls back to the artifact key.
func NameOrKey(name, key string) string {
	if name == "" {
		return key
	}
	return name
}

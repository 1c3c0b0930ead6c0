package model

// Declaration is the parsed declarative description of one scope's content.
// Lists are reconciled in the order the fields appear here.
type Declaration struct {
	DocumentDefinitions []DocumentDefinition `json:"document_definitions,omitempty" yaml:"document_definitions,omitempty"`
	DisplayTemplates    []DisplayTemplate    `json:"display_templates,omitempty" yaml:"display_templates,omitempty"`
	RecordSets          []RecordSet          `json:"record_sets,omitempty" yaml:"record_sets,omitempty"`
	Articles            []Article            `json:"articles,omitempty" yaml:"articles,omitempty"`
	WebFolders          []WebFolder          `json:"web_folders,omitempty" yaml:"web_folders,omitempty"`
}

// Translation is one explicit localized value.
type Translation struct {
	Locale string `json:"locale" yaml:"locale"`
	Value  string `json:"value" yaml:"value"`
}

// DocumentDefinition declares a schema describing a structured content type.
type DocumentDefinition struct {
	Key string `json:"key" yaml:"key"`

	// AppliesTo is the class the definition structures: ClassArticle
	// (the default) or ClassRecordSet.
	AppliesTo string `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`

	// Parent is the key of the parent definition. Empty leaves any existing
	// parent linkage untouched.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	Name            string           `json:"name,omitempty" yaml:"name,omitempty"`
	Path            string           `json:"path" yaml:"path"`
	RolePermissions []RolePermission `json:"role_permissions,omitempty" yaml:"role_permissions,omitempty"`
}

// DisplayTemplate declares a render script.
//
// A template bound to a document definition (DefinitionKey set) renders
// articles of that definition; an unbound template renders the class named
// by AppliesTo.
type DisplayTemplate struct {
	Key           string `json:"key" yaml:"key"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	AppliesTo     string `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`
	ResourceClass string `json:"resource_class,omitempty" yaml:"resource_class,omitempty"`
	Language      string `json:"language" yaml:"language"`
	Path          string `json:"path" yaml:"path"`
	Cacheable     bool   `json:"cacheable,omitempty" yaml:"cacheable,omitempty"`
	DefinitionKey string `json:"definition_key,omitempty" yaml:"definition_key,omitempty"`
}

// RecordSet declares a named collection of structured records.
type RecordSet struct {
	Key           string `json:"key" yaml:"key"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty"`
	DefinitionKey string `json:"definition_key" yaml:"definition_key"`
}

// Article declares a content article.
//
// An empty ArticleID asks the store for a freshly generated id on every run,
// so each reconciliation publishes a new article.
type Article struct {
	ArticleID               string           `json:"article_id,omitempty" yaml:"article_id,omitempty"`
	Title                   string           `json:"title" yaml:"title"`
	TitleTranslations       []Translation    `json:"title_translations,omitempty" yaml:"title_translations,omitempty"`
	Description             string           `json:"description,omitempty" yaml:"description,omitempty"`
	DescriptionTranslations []Translation    `json:"description_translations,omitempty" yaml:"description_translations,omitempty"`
	Path                    string           `json:"path" yaml:"path"`
	FolderPath              string           `json:"folder_path,omitempty" yaml:"folder_path,omitempty"`
	DefinitionKey           string           `json:"definition_key,omitempty" yaml:"definition_key,omitempty"`
	TemplateKey             string           `json:"template_key,omitempty" yaml:"template_key,omitempty"`
	Tags                    []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	RelatedAssets           *RelatedAssets   `json:"related_assets,omitempty" yaml:"related_assets,omitempty"`
	RolePermissions         []RolePermission `json:"role_permissions,omitempty" yaml:"role_permissions,omitempty"`
}

// ItemKey names the article in logs: the explicit id, or the title when the
// id is generated.
func (a Article) ItemKey() string {
	if a.ArticleID != "" {
		return a.ArticleID
	}
	return a.Title
}

// WebFolder declares a (possibly nested) article folder.
type WebFolder struct {
	Path            string           `json:"path" yaml:"path"`
	Description     string           `json:"description,omitempty" yaml:"description,omitempty"`
	RolePermissions []RolePermission `json:"role_permissions,omitempty" yaml:"role_permissions,omitempty"`
}

// RelatedAssets declares the outgoing "related" links of an article.
type RelatedAssets struct {
	// ClearAll removes every existing outgoing link before new ones are added.
	ClearAll bool           `json:"clear_all,omitempty" yaml:"clear_all,omitempty"`
	Assets   []RelatedAsset `json:"assets,omitempty" yaml:"assets,omitempty"`
}

// RelatedAsset addresses a link target by class and primary key. The
// primary key may contain placeholder tokens.
type RelatedAsset struct {
	Class      string `json:"class" yaml:"class"`
	PrimaryKey string `json:"primary_key" yaml:"primary_key"`
}

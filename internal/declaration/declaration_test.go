package declaration

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/model"
)

func siteDeclaration() *model.Declaration {
	return &model.Declaration{
		DocumentDefinitions: []model.DocumentDefinition{
			{Key: "NEWS", Name: "News", Path: "schemas/news.json"},
		},
		DisplayTemplates: []model.DisplayTemplate{
			{Key: "NEWS-TPL", Language: "ftl", Path: "templates/news.ftl", DefinitionKey: "NEWS"},
		},
		Articles: []model.Article{{
			ArticleID:  "WELCOME",
			Title:      "Welcome",
			Path:       "articles/welcome.xml",
			FolderPath: "/news",
			Tags:       []string{"intro"},
			RelatedAssets: &model.RelatedAssets{
				ClearAll: true,
				Assets:   []model.RelatedAsset{{Class: model.ClassArticle, PrimaryKey: "{{$ARTICLE-BY-ID=TARGET$}}"}},
			},
		}},
		WebFolders: []model.WebFolder{
			{Path: "/about/team", Description: "Team"},
		},
	}
}

func TestLoad_YAML(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "site.yaml"))
	require.NoError(t, err)

	assert.Equal(t, FormatYAML, doc.Format)
	assert.Equal(t, "testdata", doc.Dir())
	if diff := cmp.Diff(siteDeclaration(), doc.Declaration); diff != "" {
		t.Errorf("declaration mismatch (-want +got):\n%s", diff)
	}

	pos, ok := doc.Position("articles[0]")
	require.True(t, ok)
	assert.Equal(t, 11, pos.Line)
	assert.Equal(t, 5, pos.Column)

	pos, ok = doc.Position("web_folders[0]")
	require.True(t, ok)
	assert.Equal(t, 22, pos.Line)
}

func TestLoad_CUE(t *testing.T) {
	doc, err := Load(filepath.Join("testdata", "site.cue"))
	require.NoError(t, err)

	assert.Equal(t, FormatCUE, doc.Format)
	if diff := cmp.Diff(siteDeclaration(), doc.Declaration); diff != "" {
		t.Errorf("declaration mismatch (-want +got):\n%s", diff)
	}

	pos, ok := doc.Position("articles[0]")
	require.True(t, ok)
	assert.Equal(t, 14, pos.Line)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		wantCode string
		wantPos  bool
	}{
		{"missing file", "nope.yaml", ErrCodeNotFound, false},
		{"directory", ".", ErrCodeNotFound, false},
		{"unsupported extension", "site.json", ErrCodeFormat, false},
		{"unknown YAML field", "unknown.yaml", ErrCodeDecode, false},
		{"unknown CUE field", "unknown.cue", ErrCodeDecode, true},
		{"CUE conflict", "conflict.cue", ErrCodeBuildFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			require.Error(t, err)
			require.True(t, IsLoadError(err))

			le := err.(*LoadError)
			assert.Equal(t, tt.wantCode, le.Code, "error: %v", err)
			assert.Equal(t, tt.wantPos, le.Pos.IsValid(), "error: %v", err)
		})
	}
}

func TestLoadYAML_UnknownFieldMentionsName(t *testing.T) {
	_, err := LoadYAML("inline.yaml", []byte("articles:\n  - title: A\n    summary: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary")
}

func TestLoadYAML_Empty(t *testing.T) {
	doc, err := LoadYAML("empty.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, &model.Declaration{}, doc.Declaration)

	problems := doc.Validate()
	require.Len(t, problems, 1)
	assert.Equal(t, ErrEmptyDeclaration, problems[0].Code)
	assert.False(t, HasErrors(problems))
}

func TestValidate_Clean(t *testing.T) {
	assert.Empty(t, Validate(siteDeclaration()))
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name     string
		decl     model.Declaration
		field    string
		code     string
		severity Severity
	}{
		{
			"definition without key",
			model.Declaration{DocumentDefinitions: []model.DocumentDefinition{{Path: "s.json"}}},
			"document_definitions[0].key", ErrMissingKey, SeverityError,
		},
		{
			"definition without path",
			model.Declaration{DocumentDefinitions: []model.DocumentDefinition{{Key: "S"}}},
			"document_definitions[0].path", ErrMissingPath, SeverityError,
		},
		{
			"definition for unstructured class",
			model.Declaration{DocumentDefinitions: []model.DocumentDefinition{{Key: "S", Path: "s.json", AppliesTo: model.ClassFolder}}},
			"document_definitions[0].applies_to", ErrInvalidAppliesTo, SeverityError,
		},
		{
			"unbound template",
			model.Declaration{DisplayTemplates: []model.DisplayTemplate{{Key: "T", Path: "t.ftl"}}},
			"display_templates[0]", ErrTemplateUnbound, SeverityError,
		},
		{
			"template key shared across classes",
			model.Declaration{DisplayTemplates: []model.DisplayTemplate{
				{Key: "T", Path: "a.ftl", AppliesTo: model.ClassArticle},
				{Key: "T", Path: "b.ftl", AppliesTo: model.ClassRecordSet},
			}},
			"display_templates[1].key", ErrDuplicateKey, SeverityWarning,
		},
		{
			"record set without definition",
			model.Declaration{RecordSets: []model.RecordSet{{Key: "R"}}},
			"record_sets[0].definition_key", ErrRecordSetUnbound, SeverityError,
		},
		{
			"article without name",
			model.Declaration{Articles: []model.Article{{Path: "a.xml"}}},
			"articles[0]", ErrArticleUnnamed, SeverityError,
		},
		{
			"article with bad folder",
			model.Declaration{Articles: []model.Article{{Title: "A", Path: "a.xml", FolderPath: "/a/../b"}}},
			"articles[0].folder_path", ErrInvalidFolderPath, SeverityError,
		},
		{
			"article with bad translation locale",
			model.Declaration{Articles: []model.Article{{
				Title: "A", Path: "a.xml",
				TitleTranslations: []model.Translation{{Locale: "not a locale!", Value: "x"}},
			}}},
			"articles[0].title_translations[0].locale", ErrInvalidLocale, SeverityError,
		},
		{
			"related asset without class",
			model.Declaration{Articles: []model.Article{{
				Title: "A", Path: "a.xml",
				RelatedAssets: &model.RelatedAssets{Assets: []model.RelatedAsset{{PrimaryKey: "1"}}},
			}}},
			"articles[0].related_assets.assets[0]", ErrRelatedAssetInvalid, SeverityError,
		},
		{
			"duplicate article id",
			model.Declaration{Articles: []model.Article{
				{ArticleID: "A", Path: "a.xml"},
				{ArticleID: "A", Path: "b.xml"},
			}},
			"articles[1].key", ErrDuplicateKey, SeverityWarning,
		},
		{
			"folder paths equal after normalization",
			model.Declaration{WebFolders: []model.WebFolder{{Path: "/a/b"}, {Path: "a//b/"}}},
			"web_folders[1].key", ErrDuplicateKey, SeverityWarning,
		},
		{
			"permission without role",
			model.Declaration{WebFolders: []model.WebFolder{{
				Path:            "/a",
				RolePermissions: []model.RolePermission{{Actions: []string{"VIEW"}}},
			}}},
			"web_folders[0].role_permissions[0].role", ErrInvalidRole, SeverityError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Validate(&tt.decl)
			require.Len(t, problems, 1, "problems: %v", problems)
			assert.Equal(t, tt.field, problems[0].Field)
			assert.Equal(t, tt.code, problems[0].Code)
			assert.Equal(t, tt.severity, problems[0].Severity)
			assert.Equal(t, tt.severity == SeverityError, HasErrors(problems))
		})
	}
}

func TestValidate_ArticlesWithoutIDNeverCollide(t *testing.T) {
	problems := Validate(&model.Declaration{Articles: []model.Article{
		{Title: "Press release", Path: "a.xml"},
		{Title: "Press release", Path: "a.xml"},
	}})
	assert.Empty(t, problems)
}

func TestDocument_ValidateAttachesLines(t *testing.T) {
	doc, err := LoadYAML("inline.yaml", []byte(`record_sets:
  - key: PEOPLE
    definition_key: CONTACTS
  - key: ORPHANS
`))
	require.NoError(t, err)

	problems := doc.Validate()
	require.Len(t, problems, 1)
	assert.Equal(t, "record_sets[1].definition_key", problems[0].Field)
	assert.Equal(t, 4, problems[0].Line)
	assert.Equal(t, "[E205] line 4: record_sets[1].definition_key: record set needs definition_key", problems[0].Error())
}

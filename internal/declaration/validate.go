package declaration

import (
	"fmt"
	"strings"

	"github.com/roach88/cmsync/internal/locale"
	"github.com/roach88/cmsync/internal/model"
)

// Validation problem codes (E200-E299).
const (
	ErrMissingKey          = "E201" // key is required
	ErrMissingPath         = "E202" // source file path is required
	ErrDuplicateKey        = "E203" // key repeated within a list
	ErrTemplateUnbound     = "E204" // template has neither applies_to nor definition_key
	ErrRecordSetUnbound    = "E205" // record set has no definition_key
	ErrRelatedAssetInvalid = "E206" // related asset misses class or primary key
	ErrInvalidFolderPath   = "E207" // folder path has no usable segment
	ErrInvalidRole         = "E208" // role permission without a role
	ErrArticleUnnamed      = "E209" // article has neither article_id nor title
	ErrInvalidLocale       = "E210" // translation locale cannot be parsed
	ErrInvalidAppliesTo    = "E211" // definition applies_to is not a structurable class
	ErrEmptyDeclaration    = "E212" // nothing declared
)

// Severity grades a problem. Errors block apply; warnings are reported and
// left to the per-item reconciliation to handle.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is one finding of Validate.
type Problem struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
}

// Error implements the error interface.
func (p Problem) Error() string {
	if p.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", p.Code, p.Line, p.Field, p.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", p.Code, p.Field, p.Message)
}

// HasErrors reports whether any problem has error severity.
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks the document's declaration and attaches line numbers.
func (d *Document) Validate() []Problem {
	problems := Validate(d.Declaration)
	for i := range problems {
		ref, _, _ := strings.Cut(problems[i].Field, ".")
		if pos, ok := d.positions[ref]; ok {
			problems[i].Line = pos.Line
		}
	}
	return problems
}

// Validate returns every problem found in decl (does not fail-fast).
//
// Duplicate keys are warnings: the store rejects the second create and the
// run reports it per item.
func Validate(decl *model.Declaration) []Problem {
	v := &validator{}
	if decl == nil || isEmpty(decl) {
		v.warn("declaration", ErrEmptyDeclaration, "declaration declares nothing")
		return v.problems
	}

	seen := map[string]string{}
	for i, d := range decl.DocumentDefinitions {
		ref := itemRef("document_definitions", i)
		v.requireKey(ref, d.Key)
		v.requirePath(ref, d.Path)
		if d.AppliesTo != "" && d.AppliesTo != model.ClassArticle && d.AppliesTo != model.ClassRecordSet {
			v.fail(ref+".applies_to", ErrInvalidAppliesTo,
				fmt.Sprintf("%q cannot be structured (want %s or %s)", d.AppliesTo, model.ClassArticle, model.ClassRecordSet))
		}
		appliesTo := d.AppliesTo
		if appliesTo == "" {
			appliesTo = model.ClassArticle
		}
		v.unique(seen, ref, "definition", appliesTo+"/"+d.Key, d.Key)
		v.roles(ref, d.RolePermissions)
	}

	// Templates share one key space regardless of class.
	seen = map[string]string{}
	for i, t := range decl.DisplayTemplates {
		ref := itemRef("display_templates", i)
		v.requireKey(ref, t.Key)
		v.requirePath(ref, t.Path)
		if t.AppliesTo == "" && t.DefinitionKey == "" {
			v.fail(ref, ErrTemplateUnbound, "template needs applies_to or definition_key")
		}
		v.unique(seen, ref, "template", t.Key, t.Key)
	}

	seen = map[string]string{}
	for i, r := range decl.RecordSets {
		ref := itemRef("record_sets", i)
		v.requireKey(ref, r.Key)
		if strings.TrimSpace(r.DefinitionKey) == "" {
			v.fail(ref+".definition_key", ErrRecordSetUnbound, "record set needs definition_key")
		}
		v.unique(seen, ref, "record set", r.Key, r.Key)
	}

	seen = map[string]string{}
	for i, a := range decl.Articles {
		ref := itemRef("articles", i)
		if strings.TrimSpace(a.ArticleID) == "" && strings.TrimSpace(a.Title) == "" {
			v.fail(ref, ErrArticleUnnamed, "article needs article_id or title")
		}
		v.requirePath(ref, a.Path)
		if a.ArticleID != "" {
			v.unique(seen, ref, "article", a.ArticleID, a.ArticleID)
		}
		if a.FolderPath != "" {
			v.folderPath(ref+".folder_path", a.FolderPath)
		}
		v.translations(ref+".title_translations", a.TitleTranslations)
		v.translations(ref+".description_translations", a.DescriptionTranslations)
		if a.RelatedAssets != nil {
			for j, ra := range a.RelatedAssets.Assets {
				if strings.TrimSpace(ra.Class) == "" || strings.TrimSpace(ra.PrimaryKey) == "" {
					v.fail(fmt.Sprintf("%s.related_assets.assets[%d]", ref, j), ErrRelatedAssetInvalid,
						"related asset needs class and primary_key")
				}
			}
		}
		v.roles(ref, a.RolePermissions)
	}

	seen = map[string]string{}
	for i, f := range decl.WebFolders {
		ref := itemRef("web_folders", i)
		norm, ok := v.folderPath(ref+".path", f.Path)
		if ok {
			v.unique(seen, ref, "folder", norm, norm)
		}
		v.roles(ref, f.RolePermissions)
	}
	return v.problems
}

func isEmpty(d *model.Declaration) bool {
	return len(d.DocumentDefinitions) == 0 &&
		len(d.DisplayTemplates) == 0 &&
		len(d.RecordSets) == 0 &&
		len(d.Articles) == 0 &&
		len(d.WebFolders) == 0
}

type validator struct {
	problems []Problem
}

func (v *validator) fail(field, code, msg string) {
	v.problems = append(v.problems, Problem{Field: field, Message: msg, Code: code, Severity: SeverityError})
}

func (v *validator) warn(field, code, msg string) {
	v.problems = append(v.problems, Problem{Field: field, Message: msg, Code: code, Severity: SeverityWarning})
}

func (v *validator) requireKey(ref, key string) {
	if strings.TrimSpace(key) == "" {
		v.fail(ref+".key", ErrMissingKey, "key is required")
	}
}

func (v *validator) requirePath(ref, path string) {
	if strings.TrimSpace(path) == "" {
		v.fail(ref+".path", ErrMissingPath, "path is required")
	}
}

func (v *validator) unique(seen map[string]string, ref, what, id, key string) {
	if strings.TrimSpace(key) == "" {
		return
	}
	if first, dup := seen[id]; dup {
		v.warn(ref+".key", ErrDuplicateKey, fmt.Sprintf("%s %q already declared at %s", what, key, first))
		return
	}
	seen[id] = ref
}

func (v *validator) folderPath(field, path string) (string, bool) {
	norm, err := model.NormalizeFolderPath(path)
	if err != nil {
		v.fail(field, ErrInvalidFolderPath, err.Error())
		return "", false
	}
	return norm, true
}

func (v *validator) translations(field string, ts []model.Translation) {
	for i, t := range ts {
		if _, err := locale.Canonical(t.Locale); err != nil {
			v.fail(fmt.Sprintf("%s[%d].locale", field, i), ErrInvalidLocale, fmt.Sprintf("invalid locale %q", t.Locale))
		}
	}
}

func (v *validator) roles(ref string, perms []model.RolePermission) {
	for i, rp := range perms {
		if strings.TrimSpace(rp.Role) == "" {
			v.fail(fmt.Sprintf("%s.role_permissions[%d].role", ref, i), ErrInvalidRole, "role is required")
		}
	}
}

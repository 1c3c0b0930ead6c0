package upsert

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/roach88/cmsync/internal/locale"
)

// Schema is the JSON form of a document definition.
//
//	{
//	  "availableLanguageIds": ["en_US"],
//	  "defaultLanguageId": "en_US",
//	  "fields": [{"name": "headline", "type": "text"}]
//	}
type Schema struct {
	AvailableLanguageIDs []string      `json:"availableLanguageIds,omitempty"`
	DefaultLanguageID    string        `json:"defaultLanguageId,omitempty"`
	Fields               []SchemaField `json:"fields"`
}

// SchemaField is one (possibly nested) field of a schema.
type SchemaField struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Label        map[string]string `json:"label,omitempty"`
	Repeatable   bool              `json:"repeatable,omitempty"`
	NestedFields []SchemaField     `json:"nestedFields,omitempty"`
}

// DefaultLocale returns the schema's own default locale, if it declares a
// parseable one.
func (s *Schema) DefaultLocale() (language.Tag, bool) {
	if s.DefaultLanguageID == "" {
		return language.Und, false
	}
	tag, err := locale.Canonical(s.DefaultLanguageID)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// ParseSchema parses and checks a definition schema.
//
// A schema must be a JSON object with at least one field. Field names must
// be non-empty and unique across all nesting levels, and a declared default
// language must be a parseable locale id.
func ParseSchema(raw string) (*Schema, error) {
	var s Schema
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("invalid schema JSON: trailing data")
	}
	if len(s.Fields) == 0 {
		return nil, errors.New("schema declares no fields")
	}
	if s.DefaultLanguageID != "" {
		if _, err := locale.Canonical(s.DefaultLanguageID); err != nil {
			return nil, fmt.Errorf("schema default language: %w", err)
		}
	}

	seen := make(map[string]bool)
	if err := checkFields(s.Fields, seen); err != nil {
		return nil, err
	}
	return &s, nil
}

func checkFields(fields []SchemaField, seen map[string]bool) error {
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("field %d has no name", i)
		}
		if seen[name] {
			return fmt.Errorf("duplicate field name %q", name)
		}
		seen[name] = true
		if err := checkFields(f.NestedFields, seen); err != nil {
			return err
		}
	}
	return nil
}

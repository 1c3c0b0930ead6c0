package locale

import (
	"encoding/json"
	"encoding/xml"
	"strings"

	"golang.org/x/text/language"
)

// Detect returns the locale a raw body declares it was authored in.
//
// Two shapes are recognized:
//   - XML article content: the root element's default-locale attribute,
//     e.g. <root available-locales="en_US" default-locale="en_US">
//   - JSON definition schemas: the top-level "defaultLanguageId" field
//
// Returns false when the body declares no (parseable) locale.
func Detect(raw string) (language.Tag, bool) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return detectJSON(trimmed)
	case strings.HasPrefix(trimmed, "<"):
		return detectXML(trimmed)
	default:
		return language.Und, false
	}
}

func detectJSON(raw string) (language.Tag, bool) {
	var head struct {
		DefaultLanguageID string `json:"defaultLanguageId"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil || head.DefaultLanguageID == "" {
		return language.Und, false
	}
	tag, err := Canonical(head.DefaultLanguageID)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

func detectXML(raw string) (language.Tag, bool) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return language.Und, false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "default-locale" {
				continue
			}
			tag, err := Canonical(attr.Value)
			if err != nil {
				return language.Und, false
			}
			return tag, true
		}
		// Only the root element is consulted
		return language.Und, false
	}
}

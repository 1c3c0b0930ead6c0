package upsert

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cmsync/internal/model"
)

// DomainArtifact prefixes artifact fingerprints. The version suffix allows
// the hashed field set to change without colliding with old fingerprints.
const DomainArtifact = "cmsync/artifact/v1"

// fingerprintFields are the mutable fields of an artifact. Identity
// (id, scope, kind, key) and bookkeeping (version, status, user) are
// excluded.
type fingerprintFields struct {
	ClassName      string            `json:"class_name"`
	ParentID       int64             `json:"parent_id"`
	BoundID        int64             `json:"bound_id"`
	DefinitionKey  string            `json:"definition_key"`
	TemplateKey    string            `json:"template_key"`
	ResourceClass  string            `json:"resource_class"`
	Language       string            `json:"language"`
	Cacheable      bool              `json:"cacheable"`
	NameMap        map[string]string `json:"name_map"`
	DescriptionMap map[string]string `json:"description_map"`
	Body           string            `json:"body"`
	FolderID       int64             `json:"folder_id"`
}

// Fingerprint hashes the mutable fields of a.
// Format: hex(SHA256(DomainArtifact + 0x00 + json(fields)))
//
// encoding/json sorts map keys, so equal locale maps hash equally
// regardless of insertion order. Text is hashed as stored; callers
// normalize it with normalizeText first.
func Fingerprint(a *model.Artifact) string {
	f := fingerprintFields{
		ClassName:      a.ClassName,
		ParentID:       a.ParentID,
		BoundID:        a.BoundID,
		DefinitionKey:  a.DefinitionKey,
		TemplateKey:    a.TemplateKey,
		ResourceClass:  a.ResourceClass,
		Language:       a.Language,
		Cacheable:      a.Cacheable,
		NameMap:        nonEmpty(a.NameMap),
		DescriptionMap: nonEmpty(a.DescriptionMap),
		Body:           a.Body,
		FolderID:       a.FolderID,
	}
	data, err := json.Marshal(f)
	if err != nil {
		// Only strings, ints and bools: cannot fail.
		panic("upsert: marshal fingerprint: " + err.Error())
	}
	return hashWithDomain(DomainArtifact, data)
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText rewrites the text fields of a to NFC, so the stored text
// and its fingerprint agree.
func normalizeText(a *model.Artifact) {
	a.Body = norm.NFC.String(a.Body)
	a.NameMap = nfcMap(a.NameMap)
	a.DescriptionMap = nfcMap(a.DescriptionMap)
}

// nonEmpty hashes an empty map like a missing one.
func nonEmpty(m model.LocaleMap) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

func nfcMap(m model.LocaleMap) model.LocaleMap {
	if len(m) == 0 {
		return nil
	}
	out := make(model.LocaleMap, len(m))
	for k, v := range m {
		out[k] = norm.NFC.String(v)
	}
	return out
}

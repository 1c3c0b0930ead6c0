// Package declaration loads content declarations from YAML or CUE files
// and checks them before reconciliation.
package declaration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cmsync/internal/model"
)

// Format identifies the syntax of a declaration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeFormat      = "E008" // Unsupported file extension
	ErrCodeDecode      = "E009" // Document does not match the declaration shape
)

// Top-level list names, in reconciliation order.
var sections = []string{
	"document_definitions",
	"display_templates",
	"record_sets",
	"articles",
	"web_folders",
}

// Position is a location inside a declaration file. Line and Column are
// 1-based; zero means unknown.
type Position struct {
	Filename string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a line.
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return p.Filename
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func fromToken(pos token.Pos) Position {
	if !pos.IsValid() {
		return Position{}
	}
	return Position{Filename: pos.Filename(), Line: pos.Line(), Column: pos.Column()}
}

// LoadError represents an error that occurred while loading a declaration.
type LoadError struct {
	Code    string
	Message string
	Pos     Position
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Document is a loaded declaration together with the source location of
// every list item.
type Document struct {
	Path        string
	Format      Format
	Declaration *model.Declaration

	// positions is keyed by item reference, e.g. "articles[2]".
	positions map[string]Position
}

// Dir returns the directory declared file paths are relative to.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Position returns the location of an item reference such as
// "display_templates[0]".
func (d *Document) Position(ref string) (Position, bool) {
	p, ok := d.positions[ref]
	return p, ok
}

func itemRef(section string, i int) string {
	return fmt.Sprintf("%s[%d]", section, i)
}

// Load reads the declaration at path. The format follows the extension:
// .yaml and .yml are YAML, .cue is CUE. Unknown fields are rejected in
// both formats.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("declaration not found: %s", path)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading declaration: %v", err)}
		}
		return loadYAML(path, data)
	case ".cue":
		return loadCUE(path)
	default:
		return nil, &LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported declaration format %q (want .yaml, .yml or .cue)", filepath.Ext(path)),
		}
	}
}

// LoadYAML decodes a YAML declaration held in memory. name is used in
// positions only.
func LoadYAML(name string, data []byte) (*Document, error) {
	return loadYAML(name, data)
}

func loadYAML(name string, data []byte) (*Document, error) {
	doc := &Document{
		Path:        name,
		Format:      FormatYAML,
		Declaration: &model.Declaration{},
		positions:   map[string]Position{},
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc.Declaration); err != nil {
		if errors.Is(err, io.EOF) {
			return doc, nil
		}
		return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error(), Pos: Position{Filename: name}}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ErrCodeDecode, Message: err.Error(), Pos: Position{Filename: name}}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return doc, nil
	}
	m := root.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		section, items := m.Content[i].Value, m.Content[i+1]
		if items.Kind != yaml.SequenceNode {
			continue
		}
		for j, item := range items.Content {
			doc.positions[itemRef(section, j)] = Position{Filename: name, Line: item.Line, Column: item.Column}
		}
	}
	return doc, nil
}

func loadCUE(path string) (*Document, error) {
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: filepath.Dir(path)}
	instances := load.Instances([]string{"./" + filepath.Base(path)}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, cueLoadError(ErrCodeLoadFailed, "loading CUE file", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, "building CUE value", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeBuildFailed, "declaration is not concrete", err)
	}

	if err := checkCUEFields(value); err != nil {
		return nil, err
	}

	doc := &Document{
		Path:        path,
		Format:      FormatCUE,
		Declaration: &model.Declaration{},
		positions:   map[string]Position{},
	}
	if err := value.Decode(doc.Declaration); err != nil {
		return nil, cueLoadError(ErrCodeDecode, "decoding declaration", err)
	}

	for _, section := range sections {
		list := value.LookupPath(cue.ParsePath(section))
		if !list.Exists() {
			continue
		}
		iter, err := list.List()
		if err != nil {
			return nil, cueLoadError(ErrCodeDecode, section+" must be a list", err)
		}
		for j := 0; iter.Next(); j++ {
			doc.positions[itemRef(section, j)] = fromToken(iter.Value().Pos())
		}
	}
	return doc, nil
}

// checkCUEFields rejects unknown top-level fields. Value.Decode ignores
// them silently.
func checkCUEFields(value cue.Value) error {
	iter, err := value.Fields()
	if err != nil {
		return cueLoadError(ErrCodeDecode, "declaration must be a struct", err)
	}
	for iter.Next() {
		label := iter.Selector().String()
		known := false
		for _, s := range sections {
			if s == label {
				known = true
				break
			}
		}
		if !known {
			return &LoadError{
				Code:    ErrCodeDecode,
				Message: fmt.Sprintf("unknown field %q", label),
				Pos:     fromToken(iter.Value().Pos()),
			}
		}
	}
	return nil
}

// cueLoadError converts a CUE error to a LoadError carrying the position of
// its first underlying error.
func cueLoadError(code, context string, err error) *LoadError {
	le := &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		le.Pos = fromToken(errs[0].Position())
	}
	return le
}

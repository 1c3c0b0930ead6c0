// Package source reads the files a declaration refers to (schemas, template
// scripts, article bodies).
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEncoding is returned for files that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("file is not valid UTF-8")

// Dir reads declared files relative to a root file system.
type Dir struct {
	fsys fs.FS
}

// New creates a Dir reading from fsys.
func New(fsys fs.FS) Dir {
	return Dir{fsys: fsys}
}

// OS creates a Dir rooted at a directory of the host file system.
func OS(root string) Dir {
	return Dir{fsys: os.DirFS(root)}
}

// ReadText returns the UTF-8 content of the file at p.
//
// p is slash-separated and relative to the root; a leading "/" or "./" is
// ignored. Paths escaping the root are rejected. A leading byte order mark
// is stripped.
func (d Dir) ReadText(p string) (string, error) {
	name, err := clean(p)
	if err != nil {
		return "", err
	}
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("read %s: %w", p, ErrInvalidEncoding)
	}
	return strings.TrimPrefix(string(data), "\uFEFF"), nil
}

func clean(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", errors.New("empty file path")
	}
	name := path.Clean(strings.TrimLeft(trimmed, "/"))
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid file path %q: %w", p, fs.ErrInvalid)
	}
	return name, nil
}

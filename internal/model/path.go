package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FolderRoot is the key of the implicit root folder. Articles whose folder
// cannot be resolved are placed there (FolderID 0).
const FolderRoot = "/"

// NormalizeFolderPath returns the canonical key of a folder path: NFC
// normalized, a single leading slash, no empty segments and no trailing
// slash. "a//b/" and "/a/b" both normalize to "/a/b".
//
// Relative segments ("." and "..") are rejected.
func NormalizeFolderPath(p string) (string, error) {
	p = norm.NFC.String(strings.TrimSpace(p))
	segs := FolderSegments(p)
	if len(segs) == 0 {
		return "", fmt.Errorf("empty folder path %q", p)
	}
	for _, s := range segs {
		if s == "." || s == ".." {
			return "", fmt.Errorf("relative segment %q in folder path %q", s, p)
		}
	}
	return "/" + strings.Join(segs, "/"), nil
}

// FolderSegments splits a path into its non-empty, trimmed segments.
func FolderSegments(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		s = strings.TrimSpace(s)
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// FolderAncestors returns the normalized keys of every folder on the way
// to (and including) path, outermost first: "/a/b" yields ["/a", "/a/b"].
func FolderAncestors(path string) ([]string, error) {
	key, err := NormalizeFolderPath(path)
	if err != nil {
		return nil, err
	}
	segs := FolderSegments(key)
	out := make([]string, len(segs))
	for i := range segs {
		out[i] = "/" + strings.Join(segs[:i+1], "/")
	}
	return out, nil
}

// FolderName returns the last segment of a normalized folder path.
func FolderName(path string) string {
	segs := FolderSegments(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

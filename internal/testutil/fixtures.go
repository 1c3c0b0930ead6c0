// Package testutil provides fixtures shared by package tests: a scoped
// SQLite store, in-memory declared files and deterministic article ids.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/model"
	"github.com/roach88/cmsync/internal/store"
)

// Scope is the scope used by fixtures.
var Scope = model.Scope{ID: 20121, CompanyID: 20099, UserID: 20139}

// ScopeLocale is the default locale registered for Scope.
const ScopeLocale = "en_US"

// OpenStore opens a file-backed store under t.TempDir() with Scope
// registered. The store is closed when the test ends.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cmsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.EnsureScope(context.Background(), Scope, "Guest", ScopeLocale))
	return s
}

// Files builds an in-memory file system from path/content pairs.
//
//	fsys := testutil.Files(
//		"schemas/news.json", `{"fields":[{"name":"body","type":"text"}]}`,
//		"templates/news.ftl", "${body}",
//	)
func Files(pairs ...string) fstest.MapFS {
	if len(pairs)%2 != 0 {
		panic("testutil.Files: odd number of arguments")
	}
	fsys := fstest.MapFS{}
	for i := 0; i < len(pairs); i += 2 {
		fsys[pairs[i]] = &fstest.MapFile{Data: []byte(pairs[i+1])}
	}
	return fsys
}

// Schema returns a minimal valid definition schema with the given field
// names.
func Schema(fields ...string) string {
	if len(fields) == 0 {
		fields = []string{"body"}
	}
	out := `{"availableLanguageIds":["en_US"],"defaultLanguageId":"en_US","fields":[`
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += `{"name":"` + f + `","type":"text"}`
	}
	return out + `]}`
}

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cmsync/internal/testutil"
)

const siteYAML = `document_definitions:
  - key: NEWS
    path: schemas/news.json
display_templates:
  - key: NEWS-TPL
    language: ftl
    path: templates/news.ftl
    definition_key: NEWS
articles:
  - article_id: WELCOME
    title: Welcome
    path: articles/welcome.xml
    definition_key: NEWS
    template_key: NEWS-TPL
web_folders:
  - path: /about
    description: About us
`

// writeSite writes a declaration with its referenced files into a fresh
// directory and returns the declaration path. Extra pairs are added as
// path/content.
func writeSite(t *testing.T, decl string, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	files := append([]string{
		"site.yaml", decl,
		"schemas/news.json", testutil.Schema("headline"),
		"templates/news.ftl", "${headline}",
		"articles/welcome.xml", `<root><headline>{{$ART-STRUCT-BY-KEY=NEWS$}}</headline></root>`,
	}, extra...)
	for i := 0; i < len(files); i += 2 {
		path := filepath.Join(dir, filepath.FromSlash(files[i]))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(files[i+1]), 0o644))
	}
	return filepath.Join(dir, "site.yaml")
}

// scopeArgs points a command at a fresh database in the configured scope.
func scopeArgs(db string) []string {
	s := testutil.Scope
	return []string{
		"--db", db,
		"--scope-id", fmt.Sprint(s.ID),
		"--company-id", fmt.Sprint(s.CompanyID),
		"--user-id", fmt.Sprint(s.UserID),
	}
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestApply_TextIsIdempotent(t *testing.T) {
	t.Chdir(t.TempDir())
	decl := writeSite(t, siteYAML)
	db := filepath.Join(t.TempDir(), "cmsync.db")

	out, logs, err := execute(t, append([]string{"apply", decl}, scopeArgs(db)...)...)
	require.NoError(t, err, "logs:\n%s", logs)
	assert.Contains(t, out, "scope 20121 (company 20099)")
	assert.Contains(t, out, "4 items: 4 created, 0 updated, 0 unchanged, 0 failed, 0 skipped")
	assert.Contains(t, logs, "applying declaration")

	out, _, err = execute(t, append([]string{"apply", decl}, scopeArgs(db)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "4 items: 0 created, 0 updated, 4 unchanged, 0 failed, 0 skipped")
}

func TestApply_JSON(t *testing.T) {
	t.Chdir(t.TempDir())
	decl := writeSite(t, siteYAML)
	db := filepath.Join(t.TempDir(), "cmsync.db")

	out, _, err := execute(t, append([]string{"--format", "json", "apply", decl}, scopeArgs(db)...)...)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Items []struct {
				Phase   string `json:"phase"`
				Key     string `json:"key"`
				ID      int64  `json:"id"`
				Outcome string `json:"outcome"`
			} `json:"items"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Items, 4)
	assert.Equal(t, "definitions", resp.Data.Items[0].Phase)
	assert.Equal(t, "/about", resp.Data.Items[3].Key)
	for _, it := range resp.Data.Items {
		assert.Equal(t, "created", it.Outcome)
		assert.NotZero(t, it.ID)
	}
}

func TestApply_Strict(t *testing.T) {
	colliding := `display_templates:
  - key: SHARED
    applies_to: content.RecordSet
    language: ftl
    path: templates/news.ftl
  - key: SHARED
    applies_to: content.Article
    language: ftl
    path: templates/news.ftl
`
	t.Chdir(t.TempDir())
	decl := writeSite(t, colliding)

	out, logs, err := execute(t, append([]string{"apply", decl}, scopeArgs(filepath.Join(t.TempDir(), "a.db"))...)...)
	require.NoError(t, err, "failed items alone do not fail a run")
	assert.Contains(t, out, "DUPLICATE_KEY")
	assert.Contains(t, logs, "declaration warning")

	_, _, err = execute(t, append([]string{"apply", "--strict", decl}, scopeArgs(filepath.Join(t.TempDir(), "b.db"))...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 item(s) failed")
}

func TestApply_InvalidDeclaration(t *testing.T) {
	t.Chdir(t.TempDir())
	decl := writeSite(t, "record_sets:\n  - key: PEOPLE\n")

	out, _, err := execute(t, append([]string{"apply", decl}, scopeArgs(filepath.Join(t.TempDir(), "c.db"))...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E205")
}

func TestApply_CommandErrors(t *testing.T) {
	t.Chdir(t.TempDir())
	decl := writeSite(t, siteYAML)
	db := filepath.Join(t.TempDir(), "cmsync.db")

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing scope", []string{"apply", decl, "--db", db}, ErrCodeConfig},
		{"missing declaration", append([]string{"apply", filepath.Join(t.TempDir(), "none.yaml")}, scopeArgs(db)...), "E005"},
		{"missing config file", append([]string{"apply", decl, "--config", "absent.toml"}, scopeArgs(db)...), ErrCodeConfig},
		{"unopenable database", append([]string{"apply", decl}, scopeArgs(t.TempDir())...), ErrCodeStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestApply_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	decl := writeSite(t, siteYAML)

	s := testutil.Scope
	cfg := fmt.Sprintf(`database = "site.db"
[scope]
id = %d
company_id = %d
user_id = %d
`, s.ID, s.CompanyID, s.UserID)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmsync.toml"), []byte(cfg), 0o644))

	out, _, err := execute(t, "apply", decl)
	require.NoError(t, err)
	assert.Contains(t, out, "4 created")
	assert.FileExists(t, filepath.Join(dir, "site.db"))
}

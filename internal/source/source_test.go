package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadText(t *testing.T) {
	d := New(fstest.MapFS{
		"schemas/news.json":  {Data: []byte(`{"fields":[]}`)},
		"articles/bom.xml":   {Data: []byte("\uFEFF<root/>")},
		"templates/bad.ftl":  {Data: []byte{0xff, 0xfe, 0x00}},
		"templates/news.ftl": {Data: []byte("${title}")},
	})

	tests := []struct {
		path string
		want string
	}{
		{"schemas/news.json", `{"fields":[]}`},
		{"/schemas/news.json", `{"fields":[]}`},
		{"./templates/news.ftl", "${title}"},
		{"templates/../templates/news.ftl", "${title}"},
		{"articles/bom.xml", "<root/>"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := d.ReadText(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadText_Errors(t *testing.T) {
	d := New(fstest.MapFS{
		"bad.txt": {Data: []byte{0xff, 0xfe}},
	})

	_, err := d.ReadText("missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = d.ReadText("bad.txt")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	_, err = d.ReadText("../outside.txt")
	assert.ErrorIs(t, err, fs.ErrInvalid)

	_, err = d.ReadText("  ")
	assert.Error(t, err)
}

func TestOS(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b.txt"), []byte("hello"), 0o644))

	got, err := OS(dir).ReadText("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

package spool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathForIsUniqueAndContained(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	a := d.PathFor("report.pdf")
	b := d.PathFor("report.pdf")
	assert.NotEqual(t, a, b)
	assert.Equal(t, root, filepath.Dir(a))
	assert.True(t, strings.HasSuffix(a, "_report.pdf"))

	for _, name := range []string{"../../etc/passwd.pdf", `..\..\x.pdf`, "/abs/path/y.pdf"} {
		p := d.PathFor(name)
		assert.Equal(t, root, filepath.Dir(p), name)
	}
	assert.True(t, strings.HasSuffix(d.PathFor(""), "_upload.pdf"))
}

func TestSave(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "nested", "uploads"))
	require.NoError(t, err)

	path, n, err := d.Save(context.Background(), "a.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.EqualValues(t, 8, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestSaveCanceledLeavesNothing(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = d.Save(ctx, "a.pdf", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file removed")
}

func TestImportKeepsSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "scan.PDF")
	require.NoError(t, os.WriteFile(src, []byte("pdf"), 0o644))

	d, err := New(t.TempDir())
	require.NoError(t, err)
	path, n, err := d.Import(context.Background(), src)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.True(t, strings.HasSuffix(path, "_scan.PDF"))
	assert.FileExists(t, src)

	_, _, err = d.Import(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)
	path, _, err := d.Save(context.Background(), "a.pdf", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, d.Remove(path))
	assert.NoFileExists(t, path)
	assert.NoError(t, d.Remove(path), "missing file is fine")
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

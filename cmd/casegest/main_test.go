package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestExtract_RequiresFiles(t *testing.T) {
	_, err := runRoot(t, "extract")
	require.Error(t, err)
}

func TestExtract_TooManyFiles(t *testing.T) {
	t.Setenv("UPLOAD_MAX_FILES", "1")
	dir := t.TempDir()
	a := writeFile(t, dir, "a.pdf", "x")
	b := writeFile(t, dir, "b.pdf", "y")

	_, err := runRoot(t, "extract", a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 1")
}

func TestExtract_AllFilesRejected(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "notes.pdf", "plain text pretending to be a pdf")

	out, err := runRoot(t, "extract", "--log-level", "error", p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notes.pdf")
	assert.Empty(t, out)
}

func TestServe_InvalidConfig(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "carrier-pigeon")
	_, err := runRoot(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}

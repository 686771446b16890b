package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func writeImages(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestBatchConvertsDirectory(t *testing.T) {
	dir := writeImages(t, map[string][]byte{
		"01-board.png":  testutil.PNG(64, 48),
		"02-broken.png": testutil.Corrupt(),
		"03-notes.jpg":  testutil.JPEG(48, 64),
		"readme.txt":    []byte("ignored"),
		".hidden.png":   testutil.PNG(4, 4),
	})
	out := t.TempDir()
	report := filepath.Join(t.TempDir(), "jobs.xlsx")

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--dir", dir, "--format", "docx", "--out", out, "--report", report,
		"--poll-interval", "10ms", "--title", "Lecture 3",
	})
	require.NoError(t, cmd.Execute())

	text := stdout.String()
	assert.Contains(t, text, "(3 images)")
	assert.Contains(t, text, "status: completed")
	assert.Contains(t, text, "placeholder: image 2 (02-broken.png) could not be processed")
	assert.Contains(t, text, "material: local-")
	assert.Contains(t, text, "report written to "+report)

	_, err := os.Stat(report)
	require.NoError(t, err)

	var found []string
	require.NoError(t, filepath.WalkDir(out, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			found = append(found, filepath.Base(path))
		}
		return err
	}))
	assert.Equal(t, []string{"Lecture 3.docx"}, found)
}

func TestBatchFailsWhenNothingRenders(t *testing.T) {
	dir := writeImages(t, map[string][]byte{"a.png": testutil.Corrupt()})

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dir", dir, "--out", t.TempDir(), "--poll-interval", "10ms"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, stdout.String(), "status: failed")
	assert.Contains(t, stdout.String(), "error: no content could be rendered")
}

func TestBatchRejectsEmptyDirectory(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dir", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "no images found"))
}

func TestBatchRequiresDir(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	require.Error(t, cmd.Execute())
}

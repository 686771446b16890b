package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func TestScanDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write := func(rel string, data []byte) {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	write("b.jpg", testutil.JPEG(4, 4))
	write("a.png", testutil.PNG(4, 4))
	write("sub/c.gif", testutil.GIF(4, 4))
	write("notes.txt", []byte("x"))
	write(".hidden.png", testutil.PNG(4, 4))
	write(".cache/d.png", testutil.PNG(4, 4))

	uploads, results, stats, err := ScanDirectory(context.Background(), root, true)
	require.NoError(t, err)

	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Name
	}
	assert.Equal(t, []string{"a.png", "b.jpg", "sub/c.gif"}, names)
	assert.Equal(t, "image/jpeg", uploads[1].MIMEType)
	assert.Len(t, results, 3)
	assert.EqualValues(t, 3, stats.Matched)
	assert.EqualValues(t, 3, stats.Read)
	assert.EqualValues(t, 0, stats.Failed)

	uploads, _, _, err = ScanDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Len(t, uploads, 5)
}

func TestScanDirectory_Errors(t *testing.T) {
	t.Parallel()

	_, _, _, err := ScanDirectory(context.Background(), " ", true)
	require.Error(t, err)

	_, _, _, err = ScanDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"), true)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = ScanDirectory(ctx, t.TempDir(), true)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsHidden(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/git"))
	assert.False(t, IsHidden("."))
}

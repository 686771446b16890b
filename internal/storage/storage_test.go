package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func TestFSStore_Put(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewFSStore(dir, "http://files.local/artifacts/", testutil.Logger())
	require.NoError(t, err)

	obj, err := store.Put(context.Background(), []byte("%PDF-1.4"), "Week 1 notes.pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(obj.StorageID, "/Week 1 notes.pdf"), obj.StorageID)
	assert.Equal(t, "http://files.local/artifacts/"+strings.Replace(obj.StorageID, " ", "%20", -1), obj.URL)

	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(obj.StorageID)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))

	other, err := store.Put(context.Background(), []byte("x"), "Week 1 notes.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, obj.StorageID, other.StorageID)
}

func TestFSStore_SanitizesName(t *testing.T) {
	t.Parallel()

	store, err := NewFSStore(t.TempDir(), "http://x", testutil.Logger())
	require.NoError(t, err)

	obj, err := store.Put(context.Background(), []byte("x"), "../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(obj.StorageID, "/passwd"))
	assert.Equal(t, 2, len(strings.Split(obj.StorageID, "/")))

	obj, err = store.Put(context.Background(), []byte("x"), "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(obj.StorageID, "/document"))
}

func TestFSStore_CanceledContext(t *testing.T) {
	t.Parallel()

	store, err := NewFSStore(t.TempDir(), "http://x", testutil.Logger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, []byte("x"), "a.pdf")
	require.ErrorIs(t, err, context.Canceled)
}

func TestHTTPStore_Put(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/objects/slides.pptx", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("Content-Type"), "presentation")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn/x/slides.pptx", "id": "obj-1"})
	}))
	t.Cleanup(srv.Close)

	store := NewHTTPStore(srv.URL+"/objects/", "secret", time.Second, testutil.Logger())
	obj, err := store.Put(context.Background(), []byte("PK"), "slides.pptx")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x/slides.pptx", obj.URL)
	assert.Equal(t, "obj-1", obj.StorageID)
	assert.Equal(t, "PK", string(gotBody))
}

func TestHTTPStore_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "upstream message kept verbatim",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"storage unavailable"}`))
			},
			want: "storage unavailable",
		},
		{
			name: "missing url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"id":"x"}`))
			},
			want: "storage response is missing the artifact url",
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
			want: "storage returned an unreadable response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			store := NewHTTPStore(srv.URL, "", time.Second, testutil.Logger())
			_, err := store.Put(context.Background(), []byte("x"), "a.pdf")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

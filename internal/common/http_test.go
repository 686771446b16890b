package common

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			_, _ = w.Write(body)
		case "/json-error":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"destination CS101 is archived"}`))
		case "/nested-error":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"x","message":"bad owner"}}`))
		case "/text-error":
			http.Error(w, "quota exceeded", http.StatusInsufficientStorage)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}
	}))
	t.Cleanup(srv.Close)

	raw, status, err := SendJSON(context.Background(), srv.Client(), http.MethodPost, srv.URL+"/ok",
		map[string]string{"a": "b"}, map[string]string{"Authorization": "Bearer t"}, nil, "test.http")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"a":"b"}`, string(raw))

	tests := map[string]string{
		"/json-error":   "destination CS101 is archived",
		"/nested-error": "bad owner",
		"/text-error":   "quota exceeded",
		"/html":         "materials returned status 502",
	}
	for path, want := range tests {
		_, _, err := Send(context.Background(), srv.Client(), http.MethodPut, srv.URL+path, "image/png", nil, nil, nil, "materials.http")
		require.Error(t, err, path)
		var up *UpstreamError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, want, err.Error(), path)
	}
}

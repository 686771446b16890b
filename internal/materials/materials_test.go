package materials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/internal/ports"
	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

var (
	testArtifact = ports.ArtifactDescriptor{
		Name:      "week1.pdf",
		URL:       "https://files/week1.pdf",
		StorageID: "abc/week1.pdf",
		ByteSize:  2048,
		MIMEType:  "application/pdf",
		Pages:     3,
	}
	testOwner = ports.OwnerMetadata{OwnerID: "instructor-1", JobID: "job-1"}
)

func TestHTTPRegistrar_Register(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/materials", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var req registerRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "CS101", req.Destination)
		assert.Equal(t, "instructor-1", req.OwnerID)
		assert.Equal(t, "job-1", req.JobID)
		assert.Equal(t, 3, req.Pages)
		assert.Equal(t, int64(2048), req.ByteSize)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"mat-42","status":"published"}`))
	}))
	t.Cleanup(srv.Close)

	reg, err := NewHTTPRegistrar(srv.URL+"/api/", "tok", time.Second, testutil.Logger())
	require.NoError(t, err)

	id, err := reg.Register(context.Background(), testArtifact, "CS101", testOwner)
	require.NoError(t, err)
	assert.Equal(t, "mat-42", id)
}

func TestHTTPRegistrar_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "rejection message verbatim", status: http.StatusUnprocessableEntity, body: `{"error":"destination not found"}`, want: "destination not found"},
		{name: "response without id", status: http.StatusOK, body: `{"status":"ok"}`, want: "material registry returned an invalid response"},
		{name: "empty id", status: http.StatusOK, body: `{"id":""}`, want: "material registry returned an invalid response"},
		{name: "bare status", status: http.StatusBadGateway, body: ``, want: "materials returned status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			reg, err := NewHTTPRegistrar(srv.URL, "", time.Second, testutil.Logger())
			require.NoError(t, err)

			_, err = reg.Register(context.Background(), testArtifact, "CS101", testOwner)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewHTTPRegistrar_RequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPRegistrar("", "", 0, nil)
	require.Error(t, err)
}

func TestLogRegistrar(t *testing.T) {
	t.Parallel()

	reg := NewLogRegistrar(testutil.Logger())
	id, err := reg.Register(context.Background(), testArtifact, "CS101", testOwner)
	require.NoError(t, err)
	assert.Equal(t, "local-job-1", id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reg.Register(ctx, testArtifact, "CS101", testOwner)
	require.ErrorIs(t, err, context.Canceled)
}

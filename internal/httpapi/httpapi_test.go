package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/app"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/materials"
	"github.com/joseph-ayodele/classdocs/internal/repository"
	"github.com/joseph-ayodele/classdocs/internal/storage"
	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

type part struct {
	name, contentType string
	data              []byte
}

func multipartBody(t *testing.T, fields map[string]string, files []part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type apiHarness struct {
	srv       *httptest.Server
	artifacts string
}

func newAPI(t *testing.T, ping func(context.Context) error) *apiHarness {
	t.Helper()
	log := testutil.Logger()
	dir := t.TempDir()

	srv := httptest.NewUnstartedServer(nil)
	store, err := storage.NewFSStore(dir, "http://"+srv.Listener.Addr().String()+"/artifacts", log)
	require.NoError(t, err)

	p, err := app.NewPipeline(app.Deps{
		Jobs:      repository.NewMemoryJobRepository(log),
		Uploader:  store,
		Registrar: materials.NewLogRegistrar(log),
		Config:    common.PipelineConfig{Workers: 2, JobTimeout: 30 * time.Second, RenderConcurrency: 2},
		Logger:    log,
	})
	require.NoError(t, err)

	srv.Config.Handler = NewRouter(p.Scheduler, p.Reporter, p.Export, Config{
		RequestTimeout:  10 * time.Second,
		MaxRequestBytes: 64 << 20,
		ArtifactsDir:    dir,
		Ping:            ping,
	}, log)
	srv.Start()
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return &apiHarness{srv: srv, artifacts: dir}
}

func (h *apiHarness) do(t *testing.T, method, path, owner, contentType string, body *bytes.Buffer) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body.Bytes())
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := h.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (h *apiHarness) waitTerminal(t *testing.T, id, owner string) entity.Job {
	t.Helper()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		resp := h.do(t, http.MethodGet, "/v1/conversions/"+id, owner, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		job := decode[entity.Job](t, resp)
		if job.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return entity.Job{}
}

func TestSubmitAndPoll(t *testing.T) {
	t.Parallel()
	h := newAPI(t, nil)

	body, ct := multipartBody(t,
		map[string]string{"target_format": "pptx", "destination": "CS101", "title": "Lab photos"},
		[]part{
			{name: "one.png", contentType: "image/png", data: testutil.PNG(64, 48)},
			{name: "broken.png", contentType: "image/png", data: testutil.Corrupt()},
			{name: "three.jpg", contentType: "image/jpeg", data: testutil.JPEG(48, 64)},
		})
	resp := h.do(t, http.MethodPost, "/v1/conversions", "instructor-1", ct, body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	accepted := decode[SubmitResponse](t, resp)
	assert.Equal(t, "pending", accepted.Status)
	assert.Equal(t, "/v1/conversions/"+accepted.JobID, resp.Header.Get("Location"))

	job := h.waitTerminal(t, accepted.JobID, "instructor-1")
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, []int{2}, job.Placeholders)
	require.NotNil(t, job.Result)
	assert.Equal(t, "Lab photos.pptx", job.Result.Name)
	require.Len(t, job.Items, 3)
	assert.Equal(t, "broken.png", job.Items[1].Name)

	stored, err := os.ReadFile(filepath.Join(h.artifacts, filepath.FromSlash(job.Result.StorageID)))
	require.NoError(t, err)
	assert.Equal(t, job.Result.ByteSize, int64(len(stored)))

	dl := h.do(t, http.MethodGet, strings.TrimPrefix(job.Result.URL, h.srv.URL), "", "", nil)
	assert.Equal(t, http.StatusOK, dl.StatusCode)

	other := h.do(t, http.MethodGet, "/v1/conversions/"+accepted.JobID, "instructor-2", "", nil)
	assert.Equal(t, http.StatusNotFound, other.StatusCode)

	list := h.do(t, http.MethodGet, "/v1/conversions?limit=5", "instructor-1", "", nil)
	require.Equal(t, http.StatusOK, list.StatusCode)
	jobs := decode[map[string][]entity.Job](t, list)["jobs"]
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)

	xlsx := h.do(t, http.MethodGet, "/v1/conversions/export.xlsx", "instructor-1", "", nil)
	require.Equal(t, http.StatusOK, xlsx.StatusCode)
	assert.Contains(t, xlsx.Header.Get("Content-Type"), "spreadsheetml")
}

func TestSubmitRejected(t *testing.T) {
	t.Parallel()
	h := newAPI(t, nil)

	body, ct := multipartBody(t,
		map[string]string{"target_format": "png", "destination": "CS101"},
		[]part{{name: "notes.txt", contentType: "text/plain", data: []byte("hello")}})
	resp := h.do(t, http.MethodPost, "/v1/conversions", "instructor-1", ct, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	msg := decode[map[string]string](t, resp)["error"]
	assert.Contains(t, msg, "target_format must be one of pdf, docx, pptx")
	assert.Contains(t, msg, "items[0] has unsupported type")

	list := h.do(t, http.MethodGet, "/v1/conversions", "instructor-1", "", nil)
	jobs := decode[map[string][]entity.Job](t, list)["jobs"]
	assert.Empty(t, jobs)
}

func TestSubmitRequiresOwner(t *testing.T) {
	t.Parallel()
	h := newAPI(t, nil)

	body, ct := multipartBody(t,
		map[string]string{"target_format": "pdf", "destination": "CS101"},
		[]part{{name: "a.png", contentType: "image/png", data: testutil.PNG(8, 8)}})
	resp := h.do(t, http.MethodPost, "/v1/conversions", "", ct, body)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "owner", decode[map[string]string](t, resp)["detail"])
}

func TestSubmitNotMultipart(t *testing.T) {
	t.Parallel()
	h := newAPI(t, nil)

	resp := h.do(t, http.MethodPost, "/v1/conversions", "instructor-1", "application/json", bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetValidatesID(t *testing.T) {
	t.Parallel()
	h := newAPI(t, nil)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/conversions/xyz", "instructor-1", "", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/v1/conversions/"+uuid.NewString(), "instructor-1", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/conversions?limit=ten", "instructor-1", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/conversions?limit=-1", "instructor-1", "", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/v1/conversions?limit=5000", "instructor-1", "", nil).StatusCode)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ok := newAPI(t, func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, ok.do(t, http.MethodGet, "/healthz", "", "", nil).StatusCode)

	down := newAPI(t, func(context.Context) error { return errors.New("db down") })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/healthz", "", "", nil).StatusCode)
}

func TestRecovererLogsThroughSlog(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := chimiddleware.RequestLogger(&SlogFormatter{Logger: logger})(
		chimiddleware.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/conversions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	var panicked, request map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &panicked))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &request))
	assert.Equal(t, "http.panic", panicked["msg"])
	assert.Equal(t, "boom", panicked["panic"])
	assert.Contains(t, panicked["stack"], "goroutine")
	assert.Equal(t, "http.request", request["msg"])
	assert.Equal(t, "/v1/conversions", request["path"])
	assert.EqualValues(t, http.StatusInternalServerError, request["status"])
}

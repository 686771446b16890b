package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/app"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/materials"
	"github.com/joseph-ayodele/classdocs/internal/repository"
	"github.com/joseph-ayodele/classdocs/internal/storage"
	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

var fastPoll = core.PollPolicy{Interval: 10 * time.Millisecond, MaxAttempts: 500}

type harness struct {
	client *Client
	conn   *grpc.ClientConn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := testutil.Logger()

	store, err := storage.NewFSStore(t.TempDir(), "http://files.test", log)
	require.NoError(t, err)
	p, err := app.NewPipeline(app.Deps{
		Jobs:      repository.NewMemoryJobRepository(log),
		Uploader:  store,
		Registrar: materials.NewLogRegistrar(log),
		Config:    common.PipelineConfig{Workers: 2, JobTimeout: 30 * time.Second, RenderConcurrency: 2},
		Logger:    log,
	})
	require.NoError(t, err)

	conv, err := NewConversionServer(p.Scheduler, p.Reporter, p.Export, log)
	require.NoError(t, err)
	srv, _ := NewGRPCServer(conv, 64<<20, log)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return &harness{client: NewClient(conn), conn: conn}
}

func images(t *testing.T) []SubmitImage {
	t.Helper()
	return []SubmitImage{
		{Name: "a.png", MIMEType: "image/png", Data: testutil.PNG(40, 30)},
		{Name: "b.jpg", MIMEType: "image/jpeg", Data: testutil.JPEG(30, 40)},
	}
}

func TestConversionService_SubmitAndPoll(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.client.Submit(ctx, "instructor-1", SubmitPayload{
		TargetFormat: "docx",
		Destination:  "CS101",
		Title:        "Week 1",
		Images:       images(t),
	})
	require.NoError(t, err)

	job, err := core.WaitForTerminal(ctx, h.client, id, "instructor-1", fastPoll)
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, constants.JobStatusCompleted, job.Status)
	assert.Equal(t, constants.FormatDOCX, job.TargetFormat)
	require.NotNil(t, job.Result)
	assert.Contains(t, job.Result.URL, "http://files.test/")
	assert.Equal(t, "local-"+id.String(), job.Result.MaterialID)
	assert.Len(t, job.Items, 2)
	assert.NotNil(t, job.ProcessingDurationMs)

	jobs, err := h.client.ListJobs(ctx, "instructor-1", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)

	data, err := h.client.ExportJobs(ctx, "instructor-1")
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	rows, err := f.GetRows("Conversions")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, id.String(), rows[1][0])
}

func TestConversionService_OwnerScoping(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	id, err := h.client.Submit(ctx, "instructor-1", SubmitPayload{TargetFormat: "pdf", Destination: "CS101", Images: images(t)})
	require.NoError(t, err)

	_, err = h.client.GetStatus(ctx, id, "instructor-2")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.client.GetStatus(ctx, uuid.New(), "instructor-1")
	assert.Equal(t, codes.NotFound, status.Code(err))

	jobs, err := h.client.ListJobs(ctx, "instructor-2", 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestConversionService_AdmissionRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, err := h.client.Submit(context.Background(), "instructor-1", SubmitPayload{TargetFormat: "odt", Destination: "CS101"})
	require.Error(t, err)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "target_format must be one of pdf, docx, pptx")
	assert.Contains(t, st.Message(), "items must contain at least one image")

	_, err = h.client.Submit(context.Background(), "", SubmitPayload{TargetFormat: "pdf", Destination: "CS101", Images: images(t)})
	st, _ = status.FromError(err)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "owner is required")
}

func TestConversionService_SchemaRejectsMalformedPayload(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	tests := map[string]map[string]any{
		"unknown field":     {"target_format": "pdf", "destination": "x", "color": "red"},
		"images not a list": {"target_format": "pdf", "destination": "x", "images": "a.png"},
		"image without data": {"target_format": "pdf", "destination": "x", "images": []any{
			map[string]any{"name": "a.png"},
		}},
		"bad base64": {"target_format": "pdf", "destination": "x", "images": []any{
			map[string]any{"data": "!!not base64!!"},
		}},
	}
	for name, payload := range tests {
		in, err := structpb.NewStruct(payload)
		require.NoError(t, err, name)
		out := new(structpb.Struct)
		err = h.conn.Invoke(context.Background(), MethodSubmit, in, out)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), name)
	}
}

func TestConversionService_GetStatusValidatesID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	in, err := structpb.NewStruct(map[string]any{"job_id": "nope"})
	require.NoError(t, err)
	err = h.conn.Invoke(context.Background(), MethodGetStatus, in, new(structpb.Struct))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestConversionService_Health(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	resp, err := grpc_health_v1.NewHealthClient(h.conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	data := testutil.PNG(2, 2)
	s, err := toStruct(SubmitPayload{TargetFormat: "pdf", Images: []SubmitImage{{Name: "a", Data: data}}})
	require.NoError(t, err)
	imgs := s.GetFields()["images"].GetListValue().GetValues()
	require.Len(t, imgs, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), imgs[0].GetStructValue().GetFields()["data"].GetStringValue())

	var back SubmitPayload
	require.NoError(t, fromStruct(s, &back))
	assert.Equal(t, data, back.Images[0].Data)
}

package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// Submitter admits conversion batches.
type Submitter interface {
	Submit(ctx context.Context, req core.SubmitRequest) (uuid.UUID, error)
}

// StatusService is the read side of the pipeline.
type StatusService interface {
	GetStatus(ctx context.Context, jobID uuid.UUID, owner string) (*entity.Job, error)
	ListJobs(ctx context.Context, owner string, limit int) ([]*entity.Job, error)
}

// Exporter renders job reports.
type Exporter interface {
	JobsXLSX(ctx context.Context, owner string) ([]byte, error)
}

// ConversionServer implements ConversionServiceServer. The owner of every
// call comes from the context, set by OwnerInterceptor.
type ConversionServer struct {
	submitter Submitter
	status    StatusService
	exporter  Exporter
	schema    *jsonschema.Schema
	logger    *slog.Logger
}

func NewConversionServer(submitter Submitter, status StatusService, exporter Exporter, logger *slog.Logger) (*ConversionServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := common.CompileSchema("classdocs-submit.json", SubmitSchema())
	if err != nil {
		return nil, err
	}
	return &ConversionServer{
		submitter: submitter,
		status:    status,
		exporter:  exporter,
		schema:    schema,
		logger:    logger,
	}, nil
}

// SubmitImage is one image of a Submit request. Data is base64 in JSON.
type SubmitImage struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"`
}

// SubmitPayload is the Submit request document.
type SubmitPayload struct {
	TargetFormat string        `json:"target_format"`
	Destination  string        `json:"destination"`
	Title        string        `json:"title,omitempty"`
	Images       []SubmitImage `json:"images,omitempty"`
}

// SubmitReply is the Submit response document.
type SubmitReply struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type getStatusPayload struct {
	JobID string `json:"job_id"`
}

type listJobsPayload struct {
	Limit int `json:"limit,omitempty"`
}

type listJobsReply struct {
	Jobs []*entity.Job `json:"jobs"`
}

type exportReply struct {
	XLSX []byte `json:"xlsx"`
}

func (s *ConversionServer) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner := common.OwnerIDFromContext(ctx)

	raw, err := structJSON(in)
	if err != nil {
		return nil, common.InvalidArgumentError("request is not a valid document")
	}
	if err := common.ValidateJSON(s.schema, raw); err != nil {
		s.logger.Info("grpc.submit.invalid_payload", "owner", owner, "error", err)
		return nil, common.GRPCStatus(common.NewAdmissionError("payload", err.Error()))
	}
	var req SubmitPayload
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentErrorf("images must carry base64 data: %v", err)
	}

	uploads := make([]entity.Upload, len(req.Images))
	for i, img := range req.Images {
		uploads[i] = entity.Upload{Name: img.Name, MIMEType: img.MIMEType, Data: img.Data}
	}

	id, err := s.submitter.Submit(ctx, core.SubmitRequest{
		Owner:        owner,
		Uploads:      uploads,
		TargetFormat: req.TargetFormat,
		Destination:  req.Destination,
		Title:        req.Title,
	})
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(SubmitReply{JobID: id.String(), Status: "pending"})
}

func (s *ConversionServer) GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req getStatusPayload
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentError("job_id is required")
	}
	id, err := uuid.Parse(strings.TrimSpace(req.JobID))
	if err != nil {
		return nil, common.InvalidArgumentError("job_id must be a UUID")
	}

	job, err := s.status.GetStatus(ctx, id, common.OwnerIDFromContext(ctx))
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	return toStruct(job)
}

func (s *ConversionServer) ListJobs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req listJobsPayload
	if err := fromStruct(in, &req); err != nil {
		return nil, common.InvalidArgumentError("limit must be an integer")
	}

	jobs, err := s.status.ListJobs(ctx, common.OwnerIDFromContext(ctx), req.Limit)
	if err != nil {
		return nil, common.GRPCStatus(err)
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	return toStruct(listJobsReply{Jobs: jobs})
}

func (s *ConversionServer) ExportJobs(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	owner := common.OwnerIDFromContext(ctx)
	if owner == "" {
		return nil, common.InvalidArgumentError("owner is required")
	}
	xlsx, err := s.exporter.JobsXLSX(ctx, owner)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "owner", owner, "error", err)
		return nil, common.GRPCStatus(err)
	}
	return toStruct(exportReply{XLSX: xlsx})
}

package server

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// Client calls classdocs.v1.ConversionService. It satisfies
// core.StatusReader, so WaitForTerminal can poll a remote service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method, owner string, req any) (*structpb.Struct, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	if owner != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, OwnerMetadataKey, owner)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit sends a batch and returns the job id.
func (c *Client) Submit(ctx context.Context, owner string, payload SubmitPayload) (uuid.UUID, error) {
	out, err := c.invoke(ctx, MethodSubmit, owner, payload)
	if err != nil {
		return uuid.Nil, err
	}
	var reply SubmitReply
	if err := fromStruct(out, &reply); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(reply.JobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("server returned invalid job id %q: %w", reply.JobID, err)
	}
	return id, nil
}

func (c *Client) GetStatus(ctx context.Context, jobID uuid.UUID, owner string) (*entity.Job, error) {
	out, err := c.invoke(ctx, MethodGetStatus, owner, getStatusPayload{JobID: jobID.String()})
	if err != nil {
		return nil, err
	}
	job := new(entity.Job)
	if err := fromStruct(out, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) ListJobs(ctx context.Context, owner string, limit int) ([]*entity.Job, error) {
	out, err := c.invoke(ctx, MethodListJobs, owner, listJobsPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	var reply listJobsReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return reply.Jobs, nil
}

// ExportJobs returns the owner's XLSX job report.
func (c *Client) ExportJobs(ctx context.Context, owner string) ([]byte, error) {
	out, err := c.invoke(ctx, MethodExportJobs, owner, struct{}{})
	if err != nil {
		return nil, err
	}
	var reply exportReply
	if err := fromStruct(out, &reply); err != nil {
		return nil, err
	}
	return reply.XLSX, nil
}

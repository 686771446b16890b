// Package materials registers finished documents as class materials.
package materials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/ports"
)

// HTTPRegistrar posts artifact descriptors to a material registry service.
type HTTPRegistrar struct {
	endpoint string
	token    string
	client   *http.Client
	schema   *jsonschema.Schema
	log      *slog.Logger
}

func NewHTTPRegistrar(endpoint, token string, timeout time.Duration, log *slog.Logger) (*HTTPRegistrar, error) {
	if log == nil {
		log = slog.Default()
	}
	if endpoint == "" {
		return nil, fmt.Errorf("materials endpoint is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	schema, err := common.CompileSchema("materials-register-response.json", RegisterResponseSchema())
	if err != nil {
		return nil, err
	}
	return &HTTPRegistrar{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
		schema:   schema,
		log:      log,
	}, nil
}

type registerRequest struct {
	Destination string `json:"destination"`
	OwnerID     string `json:"owner_id"`
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	StorageID   string `json:"storage_id,omitempty"`
	ByteSize    int64  `json:"byte_size"`
	MIMEType    string `json:"mime_type"`
	Pages       int    `json:"pages"`
}

type registerResponse struct {
	ID string `json:"id"`
}

// Register returns the material record id. Registry rejections surface with
// the registry's own message.
func (r *HTTPRegistrar) Register(ctx context.Context, artifact ports.ArtifactDescriptor, destination string, owner ports.OwnerMetadata) (string, error) {
	body := registerRequest{
		Destination: destination,
		OwnerID:     owner.OwnerID,
		JobID:       owner.JobID,
		Name:        artifact.Name,
		URL:         artifact.URL,
		StorageID:   artifact.StorageID,
		ByteSize:    artifact.ByteSize,
		MIMEType:    artifact.MIMEType,
		Pages:       artifact.Pages,
	}
	headers := map[string]string{}
	if r.token != "" {
		headers["Authorization"] = "Bearer " + r.token
	}

	raw, _, err := common.SendJSON(ctx, r.client, http.MethodPost, r.endpoint+"/materials", body, headers, r.log, "materials.http")
	if err != nil {
		var up *common.UpstreamError
		if errors.As(err, &up) {
			return "", err
		}
		return "", fmt.Errorf("material registration failed: %w", err)
	}

	if err := common.ValidateJSON(r.schema, raw); err != nil {
		r.log.Warn("materials.response.invalid", "job_id", owner.JobID, "error", err)
		return "", fmt.Errorf("material registry returned an invalid response: %w", err)
	}
	var resp registerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("material registry returned an invalid response: %w", err)
	}
	r.log.Info("materials.registered", "job_id", owner.JobID, "destination", destination, "material_id", resp.ID)
	return resp.ID, nil
}

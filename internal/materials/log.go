package materials

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/classdocs/internal/ports"
)

// LogRegistrar is a local registrar: it logs the registration and derives
// the material id from the job id.
type LogRegistrar struct {
	log *slog.Logger
}

func NewLogRegistrar(log *slog.Logger) *LogRegistrar {
	if log == nil {
		log = slog.Default()
	}
	return &LogRegistrar{log: log}
}

func (r *LogRegistrar) Register(ctx context.Context, artifact ports.ArtifactDescriptor, destination string, owner ports.OwnerMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := "local-" + owner.JobID
	r.log.Info("materials.local.registered",
		"material_id", id,
		"destination", destination,
		"owner", owner.OwnerID,
		"name", artifact.Name,
		"url", artifact.URL,
		"bytes", artifact.ByteSize,
		"pages", artifact.Pages,
	)
	return id, nil
}

// Package ports declares the external collaborators the conversion
// pipeline consumes but does not own.
package ports

import (
	"context"
)

// StoredObject is the durable location returned by the storage service.
type StoredObject struct {
	URL       string
	StorageID string
}

// Uploader hands finished documents to durable object storage.
// Implementations may fail transiently; callers do not retry.
type Uploader interface {
	Put(ctx context.Context, data []byte, suggestedName string) (StoredObject, error)
}

// ArtifactDescriptor describes a stored document being registered as a
// class material.
type ArtifactDescriptor struct {
	Name      string
	URL       string
	StorageID string
	ByteSize  int64
	MIMEType  string
	Pages     int
}

// OwnerMetadata carries the requester identity and job correlation.
type OwnerMetadata struct {
	OwnerID string
	JobID   string
}

// Registrar registers a stored artifact against a destination (for example
// a classroom) and returns the material record id.
type Registrar interface {
	Register(ctx context.Context, artifact ArtifactDescriptor, destination string, owner OwnerMetadata) (string, error)
}

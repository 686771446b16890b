package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
)

// InputItem is the metadata of one submitted image. Raw bytes live in the
// job's staging area, never on the record.
type InputItem struct {
	Name     string `json:"name"`
	ByteSize int64  `json:"byte_size"`
	MIMEType string `json:"mime_type"`
}

// Artifact describes the finished document.
type Artifact struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	ByteSize   int64  `json:"byte_size"`
	MIMEType   string `json:"mime_type"`
	StorageID  string `json:"storage_id,omitempty"`
	MaterialID string `json:"material_id,omitempty"`
}

// Job represents a conversion job record for data transfer between layers.
type Job struct {
	ID                   uuid.UUID           `json:"id"`
	Owner                string              `json:"owner"`
	Items                []InputItem         `json:"items"`
	TargetFormat         constants.Format    `json:"target_format"`
	Destination          string              `json:"destination"`
	Title                string              `json:"title,omitempty"`
	Status               constants.JobStatus `json:"status"`
	Result               *Artifact           `json:"result,omitempty"`
	ErrorDetail          *string             `json:"error_detail,omitempty"`
	Placeholders         []int               `json:"placeholders,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
	ProcessingDurationMs *int64              `json:"processing_duration_ms,omitempty"`
}

// Clone returns a deep copy, so snapshots handed to readers never alias
// repository state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Items = slices.Clone(j.Items)
	c.Placeholders = slices.Clone(j.Placeholders)
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	c.ErrorDetail = clonePtr(j.ErrorDetail)
	c.StartedAt = clonePtr(j.StartedAt)
	c.CompletedAt = clonePtr(j.CompletedAt)
	c.ProcessingDurationMs = clonePtr(j.ProcessingDurationMs)
	return &c
}

// TotalBytes sums the declared item sizes.
func (j *Job) TotalBytes() int64 {
	var n int64
	for _, it := range j.Items {
		n += it.ByteSize
	}
	return n
}

// Terminal reports whether the job reached completed or failed.
func (j *Job) Terminal() bool {
	return j.Status.IsTerminal()
}

// DurationMs computes the processing duration for a terminal transition at
// finishedAt. The clock starts at StartedAt, or CreatedAt when the job never
// started.
func (j *Job) DurationMs(finishedAt time.Time) int64 {
	start := j.CreatedAt
	if j.StartedAt != nil {
		start = *j.StartedAt
	}
	d := finishedAt.Sub(start).Milliseconds()
	if d < 0 {
		return 0
	}
	return d
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Upload is one submitted image with its raw bytes, in submission order.
type Upload struct {
	Name     string
	MIMEType string
	Data     []byte
}

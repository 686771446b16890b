// Package staging holds a job's raw input bytes between admission and
// execution. Every staged batch is released exactly once, on every exit path
// of the job.
package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/core/render"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// Area stages uploads for a job.
type Area interface {
	Stage(ctx context.Context, jobID uuid.UUID, uploads []entity.Upload) (Batch, error)
	// Active reports batches staged and not yet released.
	Active() int
}

// Batch is one job's staged inputs. Release is idempotent.
type Batch interface {
	Sources() []render.Source
	Release() error
}

var ErrReleased = errors.New("staged batch already released")

// New returns a disk-backed area rooted at dir, or an in-memory area when dir
// is empty.
func New(dir string, log *slog.Logger) (Area, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir == "" {
		return NewMemoryArea(log), nil
	}
	return NewDiskArea(dir, log)
}

type MemoryArea struct {
	active atomic.Int64
	log    *slog.Logger
}

func NewMemoryArea(log *slog.Logger) *MemoryArea {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryArea{log: log}
}

func (a *MemoryArea) Stage(ctx context.Context, jobID uuid.UUID, uploads []entity.Upload) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := &memoryBatch{area: a, jobID: jobID, items: make([]entity.Upload, len(uploads))}
	copy(b.items, uploads)
	a.active.Add(1)
	a.log.Debug("staging.stage", "job_id", jobID, "items", len(uploads), "backend", "memory")
	return b, nil
}

func (a *MemoryArea) Active() int { return int(a.active.Load()) }

type memoryBatch struct {
	area  *MemoryArea
	jobID uuid.UUID

	mu       sync.Mutex
	items    []entity.Upload
	released bool
}

func (b *memoryBatch) Sources() []render.Source {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]render.Source, len(b.items))
	for i, it := range b.items {
		data := it.Data
		out[i] = render.Source{
			Name:     it.Name,
			MIMEType: it.MIMEType,
			Size:     int64(len(data)),
			Open: func() (io.ReadCloser, error) {
				if b.isReleased() {
					return nil, ErrReleased
				}
				return io.NopCloser(bytes.NewReader(data)), nil
			},
		}
	}
	return out
}

func (b *memoryBatch) isReleased() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

func (b *memoryBatch) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	b.released = true
	b.items = nil
	b.area.active.Add(-1)
	b.area.log.Debug("staging.release", "job_id", b.jobID, "backend", "memory")
	return nil
}

// DiskArea writes each job's uploads into its own temporary directory.
type DiskArea struct {
	root   string
	active atomic.Int64
	log    *slog.Logger
}

func NewDiskArea(root string, log *slog.Logger) (*DiskArea, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &DiskArea{root: root, log: log}, nil
}

func (a *DiskArea) Stage(ctx context.Context, jobID uuid.UUID, uploads []entity.Upload) (Batch, error) {
	dir, err := os.MkdirTemp(a.root, "job-"+jobID.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	b := &diskBatch{area: a, jobID: jobID, dir: dir, items: make([]diskItem, len(uploads))}
	for i, up := range uploads {
		if err := ctx.Err(); err != nil {
			cleanup()
			return nil, err
		}
		file := fmt.Sprintf("%02d", i+1)
		if ext := constants.NormalizeExt(filepath.Ext(up.Name)); ext != "" {
			file += "." + ext
		}
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, up.Data, 0o600); err != nil {
			cleanup()
			return nil, fmt.Errorf("stage item %d: %w", i+1, err)
		}
		b.items[i] = diskItem{name: up.Name, mimeType: up.MIMEType, path: path, size: int64(len(up.Data))}
	}
	a.active.Add(1)
	a.log.Debug("staging.stage", "job_id", jobID, "items", len(uploads), "backend", "disk", "dir", dir)
	return b, nil
}

func (a *DiskArea) Active() int { return int(a.active.Load()) }

type diskItem struct {
	name     string
	mimeType string
	path     string
	size     int64
}

type diskBatch struct {
	area  *DiskArea
	jobID uuid.UUID
	dir   string
	items []diskItem
	once  sync.Once
	err   error
}

// Dir is the batch's staging directory.
func (b *diskBatch) Dir() string { return b.dir }

func (b *diskBatch) Sources() []render.Source {
	out := make([]render.Source, len(b.items))
	for i, it := range b.items {
		out[i] = render.Source{
			Name:     it.name,
			MIMEType: it.mimeType,
			Size:     it.size,
			Open: func() (io.ReadCloser, error) {
				f, err := os.Open(it.path)
				if errors.Is(err, os.ErrNotExist) {
					return nil, ErrReleased
				}
				return f, err
			},
		}
	}
	return out
}

func (b *diskBatch) Release() error {
	b.once.Do(func() {
		b.err = os.RemoveAll(b.dir)
		b.area.active.Add(-1)
		if b.err != nil {
			b.area.log.Error("staging.release.failed", "job_id", b.jobID, "dir", b.dir, "error", b.err)
			return
		}
		b.area.log.Debug("staging.release", "job_id", b.jobID, "backend", "disk")
	})
	return b.err
}

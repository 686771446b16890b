// Package storage implements ports.Uploader over a local directory or a
// remote object store.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/classdocs/internal/ports"
)

// FSStore writes artifacts under Dir and serves them from BaseURL.
type FSStore struct {
	dir     string
	baseURL string
	log     *slog.Logger
}

func NewFSStore(dir, baseURL string, log *slog.Logger) (*FSStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if dir == "" {
		return nil, fmt.Errorf("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), log: log}, nil
}

// Dir returns the root directory artifacts are written under.
func (s *FSStore) Dir() string { return s.dir }

// Put stores data under a fresh key "<id>/<name>". The key doubles as the
// storage id.
func (s *FSStore) Put(ctx context.Context, data []byte, suggestedName string) (ports.StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return ports.StoredObject{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return ports.StoredObject{}, fmt.Errorf("generate storage key: %w", err)
	}
	key := path.Join(id.String(), objectName(suggestedName))

	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ports.StoredObject{}, fmt.Errorf("storage write failed: %w", err)
	}
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return ports.StoredObject{}, fmt.Errorf("storage write failed: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return ports.StoredObject{}, fmt.Errorf("storage write failed: %w", err)
	}

	s.log.Info("storage.fs.put", "key", key, "bytes", len(data))
	return ports.StoredObject{URL: s.baseURL + "/" + escapeKey(key), StorageID: key}, nil
}

// objectName keeps only the base name and drops path separators.
func objectName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(name, ". ")
	if name == "" || name == "/" {
		return "document"
	}
	return name
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Package ingest collects image batches from the local filesystem.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// FileResult reports one matched file.
type FileResult struct {
	Path string
	Size int64
	Err  string
}

type DirStats struct {
	Scanned uint32
	Matched uint32
	Read    uint32
	Failed  uint32
}

// ScanDirectory walks root in lexical order and reads every image file into
// an upload, named by its path relative to root. Unreadable files are
// reported in the results and left out of the batch. Files larger than the
// per-item limit are read one byte past it so admission rejects them.
func ScanDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.Upload, []FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root path is required")
	}

	var (
		uploads []entity.Upload
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		data, err := readLimited(path)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		name, err := filepath.Rel(root, path)
		if err != nil {
			name = filepath.Base(path)
		}
		uploads = append(uploads, entity.Upload{
			Name:     filepath.ToSlash(name),
			MIMEType: constants.ImageTypeByExt(filepath.Ext(path)),
			Data:     data,
		})
		results = append(results, FileResult{Path: path, Size: int64(len(data))})
		stats.Read++
		return nil
	})
	if err != nil {
		return uploads, results, stats, fmt.Errorf("walk: %w", err)
	}
	return uploads, results, stats, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, constants.MaxItemBytes+1))
}

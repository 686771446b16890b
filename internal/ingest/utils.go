package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/classdocs/constants"
)

// AllowedExt checks if a file extension names a convertible image type.
func AllowedExt(ext string) bool {
	return constants.ImageTypeByExt(ext) != ""
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

package constants

import (
	"mime"
	"strings"
)

// Format is a supported output document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
)

// Formats holds the allowed values for the target_format field in ConversionJob.
var Formats = []string{string(FormatPDF), string(FormatDOCX), string(FormatPPTX)}

// Batch limits enforced at admission.
const (
	MaxBatch     = 20
	MaxItemBytes = 10 << 20 // 10 MiB
	// MaxPixels guards decoders against decompression bombs.
	MaxPixels = 64_000_000
)

// ParseFormat normalizes s and reports whether it names a supported format.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatPDF, FormatDOCX, FormatPPTX:
		return f, true
	}
	return "", false
}

// MIMEType returns the content type of documents in format f.
func (f Format) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatPPTX:
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	}
	return "application/octet-stream"
}

// Extension returns the file extension (with dot) for format f.
func (f Format) Extension() string {
	return "." + string(f)
}

// AllowedImageTypes holds the image MIME types accepted for conversion.
var AllowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
	"image/bmp":  {},
}

var imageTypeAliases = map[string]string{
	"image/jpg":           "image/jpeg",
	"image/pjpeg":         "image/jpeg",
	"image/x-png":         "image/png",
	"image/x-ms-bmp":      "image/bmp",
	"image/x-bmp":         "image/bmp",
	"image/x-windows-bmp": "image/bmp",
}

// NormalizeMIME lowercases a content type, strips parameters and resolves
// common aliases ("image/jpg" -> "image/jpeg").
func NormalizeMIME(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	ct = strings.ToLower(ct)
	if canon, ok := imageTypeAliases[ct]; ok {
		return canon
	}
	return ct
}

// AllowedImageType reports whether ct (normalized) may be converted.
func AllowedImageType(ct string) bool {
	_, ok := AllowedImageTypes[NormalizeMIME(ct)]
	return ok
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ImageTypeByExt maps a file extension to its image MIME type, or "".
func ImageTypeByExt(ext string) string {
	switch NormalizeExt(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "bmp":
		return "image/bmp"
	}
	return ""
}

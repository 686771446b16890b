// Package render turns an ordered batch of images into a single PDF, DOCX or
// PPTX document. All formats share one driver: items that fail to decode or
// embed become placeholder units, and a document with no real content is a
// RenderError.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/classdocs/constants"
)

// Source is one staged input image, in submission order.
type Source struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Metadata is written into the document properties.
type Metadata struct {
	Title     string
	Author    string
	CreatedAt time.Time
}

// Document is a rendered output. Units counts pages (or slides), placeholders
// included; Placeholders holds their 1-based positions.
type Document struct {
	Data         []byte
	Units        int
	Placeholders []int
}

// Converter renders a batch into one output format.
type Converter interface {
	Format() constants.Format
	MIMEType() string
	Extension() string
	Render(ctx context.Context, sources []Source, meta Metadata) (*Document, error)
}

// ErrNoContent is the cause of every RenderError.
var ErrNoContent = errors.New("no content could be rendered")

// RenderError reports that not a single item produced real content.
type RenderError struct {
	Format constants.Format
	Items  int
	// Causes holds the per-item failures, by input position.
	Causes []error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %d item(s), %s", e.Format, e.Items, ErrNoContent)
}

func (e *RenderError) Unwrap() error { return ErrNoContent }

// Options tunes the shared driver.
type Options struct {
	// Concurrency bounds parallel image preparation within one job.
	Concurrency int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 4
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewConverter returns the converter for f.
func NewConverter(f constants.Format, opts Options) (Converter, error) {
	switch f {
	case constants.FormatPDF:
		return NewPDFConverter(opts), nil
	case constants.FormatDOCX:
		return NewDOCXConverter(opts), nil
	case constants.FormatPPTX:
		return NewPPTXConverter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported target format %q", f)
	}
}

// Registry resolves converters by format.
type Registry map[constants.Format]Converter

// NewRegistry builds one converter per supported format.
func NewRegistry(opts Options) Registry {
	return Registry{
		constants.FormatPDF:  NewPDFConverter(opts),
		constants.FormatDOCX: NewDOCXConverter(opts),
		constants.FormatPPTX: NewPPTXConverter(opts),
	}
}

func (r Registry) Lookup(f constants.Format) (Converter, error) {
	c, ok := r[f]
	if !ok {
		return nil, fmt.Errorf("unsupported target format %q", f)
	}
	return c, nil
}

// placeholderText is the caption of a unit whose image could not be used.
func placeholderText(position int, name string) string {
	return fmt.Sprintf("Image %d: %s - could not be processed", position, name)
}

package render

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/classdocs/constants"
)

// backend is one output format's writer. Units are appended in call order.
type backend interface {
	addImage(img *preparedImage, name string) error
	addPlaceholder(text string) error
	bytes() ([]byte, error)
}

// driver runs the format-independent part of every conversion.
type driver struct {
	format constants.Format
	opts   Options
}

func (d driver) render(ctx context.Context, sources []Source, be backend) (*Document, error) {
	log := d.opts.Logger.With("format", d.format, "items", len(sources))

	images, errs, err := prepareAll(ctx, sources, d.opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("prepare images: %w", err)
	}

	doc := &Document{}
	embedded := 0
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		position := i + 1
		if img := images[i]; img != nil {
			err := be.addImage(img, src.Name)
			images[i] = nil
			if err == nil {
				embedded++
				doc.Units++
				continue
			}
			errs[i] = fmt.Errorf("item %d (%s): embed: %w", position, src.Name, err)
		}
		log.Warn("render.item.placeholder", "position", position, "name", src.Name, "error", errs[i])
		if err := be.addPlaceholder(placeholderText(position, src.Name)); err != nil {
			return nil, fmt.Errorf("write placeholder %d: %w", position, err)
		}
		doc.Units++
		doc.Placeholders = append(doc.Placeholders, position)
	}

	if embedded == 0 {
		return nil, &RenderError{Format: d.format, Items: len(sources), Causes: errs}
	}

	data, err := be.bytes()
	if err != nil {
		return nil, fmt.Errorf("finalize %s: %w", d.format, err)
	}
	doc.Data = data
	log.Debug("render.done", "units", doc.Units, "placeholders", len(doc.Placeholders), "bytes", len(data))
	return doc, nil
}

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/classdocs/constants"
)

// maxSide caps the longest edge of an embedded image. Larger images are
// downscaled before embedding.
const maxSide = 4096

// preparedImage is an image ready to embed: JPEG bytes as submitted, or an
// 8-bit PNG re-encoding of anything else.
type preparedImage struct {
	data   []byte
	ext    string // "jpeg" or "png"
	width  int
	height int
}

var errEmptyImage = errors.New("image is empty")

// prepareAll prepares every source concurrently. Results are stored by index
// so output order matches input order; per-item errors do not stop the batch.
func prepareAll(ctx context.Context, sources []Source, concurrency int) ([]*preparedImage, []error, error) {
	images := make([]*preparedImage, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := safePrepare(src)
			if err != nil {
				errs[i] = fmt.Errorf("item %d (%s): %w", i+1, src.Name, err)
				return nil
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return images, errs, nil
}

// safePrepare turns a panic in a source or a decoder into an item error, so
// it costs one placeholder instead of the process.
func safePrepare(src Source) (img *preparedImage, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return prepare(src)
}

func prepare(src Source) (*preparedImage, error) {
	if src.Open == nil {
		return nil, errors.New("source has no data")
	}
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, constants.MaxItemBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	if len(data) > constants.MaxItemBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", constants.MaxItemBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > constants.MaxPixels {
		return nil, fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, constants.MaxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if w, h := cfg.Width, cfg.Height; w > maxSide || h > maxSide {
		img = downscale(img, maxSide)
	} else if format == "jpeg" {
		return &preparedImage{data: data, ext: "jpeg", width: w, height: h}, nil
	}

	b := img.Bounds()
	if format == "jpeg" {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return &preparedImage{data: buf.Bytes(), ext: "jpeg", width: b.Dx(), height: b.Dy()}, nil
	}

	// 8-bit NRGBA keeps every writer on its supported PNG subset.
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &preparedImage{data: buf.Bytes(), ext: "png", width: b.Dx(), height: b.Dy()}, nil
}

func downscale(src image.Image, side int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*side/w)
		w = side
	} else {
		w = max(1, w*side/h)
		h = side
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

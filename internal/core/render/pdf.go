package render

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/joseph-ayodele/classdocs/constants"
)

const (
	a4WidthMM  = 210.0
	a4HeightMM = 297.0
	pdfMargin  = 15.0
)

// PDFConverter writes one A4 portrait page per unit.
type PDFConverter struct {
	opts Options
}

func NewPDFConverter(opts Options) *PDFConverter {
	return &PDFConverter{opts: opts.withDefaults()}
}

func (c *PDFConverter) Format() constants.Format { return constants.FormatPDF }
func (c *PDFConverter) MIMEType() string         { return constants.FormatPDF.MIMEType() }
func (c *PDFConverter) Extension() string        { return constants.FormatPDF.Extension() }

func (c *PDFConverter) Render(ctx context.Context, sources []Source, meta Metadata) (*Document, error) {
	return driver{format: constants.FormatPDF, opts: c.opts}.render(ctx, sources, newPDFBackend(meta))
}

type pdfBackend struct {
	pdf     *fpdf.Fpdf
	content box
	seq     int
}

func newPDFBackend(meta Metadata) *pdfBackend {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.SetCreator("classdocs", true)
	if meta.Title != "" {
		pdf.SetTitle(meta.Title, true)
	}
	if meta.Author != "" {
		pdf.SetAuthor(meta.Author, true)
	}
	if !meta.CreatedAt.IsZero() {
		pdf.SetCreationDate(meta.CreatedAt)
	}
	return &pdfBackend{
		pdf: pdf,
		content: box{
			X: pdfMargin, Y: pdfMargin,
			W: a4WidthMM - 2*pdfMargin, H: a4HeightMM - 2*pdfMargin,
		},
	}
}

func (b *pdfBackend) addImage(img *preparedImage, _ string) error {
	b.seq++
	name := fmt.Sprintf("img%d", b.seq)
	opts := fpdf.ImageOptions{ImageType: img.ext}

	// register before AddPage so a rejected image leaves no blank page
	b.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.data))
	if b.pdf.Err() {
		err := b.pdf.Error()
		b.pdf.ClearError()
		return err
	}

	r := fitImage(img.width, img.height, b.content, mmPerInch/pxPerInch)
	b.pdf.AddPage()
	b.pdf.ImageOptions(name, r.X, r.Y, r.W, r.H, false, opts, 0, "")
	return b.pdf.Error()
}

func (b *pdfBackend) addPlaceholder(text string) error {
	b.pdf.AddPage()
	b.pdf.SetDrawColor(180, 180, 180)
	b.pdf.Rect(b.content.X, b.content.Y, b.content.W, b.content.H, "D")
	b.pdf.SetFont("Helvetica", "", 14)
	b.pdf.SetTextColor(90, 90, 90)
	b.pdf.SetXY(b.content.X, b.content.Y+b.content.H/2-4)
	b.pdf.MultiCell(b.content.W, 8, pdfCaption(text), "", "C", false)
	return b.pdf.Error()
}

// pdfCaption encodes text for the cp1252 core font. Runes cp1252 cannot
// hold are written as \uXXXX so the file name stays identifiable.
func pdfCaption(text string) string {
	var b strings.Builder
	for _, r := range text {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, `\u%04X`, r)
	}
	return b.String()
}

func (b *pdfBackend) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

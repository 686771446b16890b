package render

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/classdocs/constants"
)

// A4 portrait section with one-inch margins, in twips.
const (
	docxPageW   = 11906
	docxPageH   = 16838
	docxMargin  = 1440
	docxReserve = 400 // height kept free for the paragraph line box
)

// DOCXConverter writes one page per unit, each image centered on its page.
type DOCXConverter struct {
	opts Options
}

func NewDOCXConverter(opts Options) *DOCXConverter {
	return &DOCXConverter{opts: opts.withDefaults()}
}

func (c *DOCXConverter) Format() constants.Format { return constants.FormatDOCX }
func (c *DOCXConverter) MIMEType() string         { return constants.FormatDOCX.MIMEType() }
func (c *DOCXConverter) Extension() string        { return constants.FormatDOCX.Extension() }

func (c *DOCXConverter) Render(ctx context.Context, sources []Source, meta Metadata) (*Document, error) {
	return driver{format: constants.FormatDOCX, opts: c.opts}.render(ctx, sources, &docxBackend{meta: meta})
}

type docxUnit struct {
	Image *docxImage
	Text  string
}

type docxImage struct {
	ID     int
	RelID  string
	Name   string
	CX, CY int64
}

type docxView struct {
	Units                []docxUnit
	PageW, PageH, Margin int
}

type docxBackend struct {
	meta  Metadata
	units []docxUnit
	media []mediaPart
}

func (b *docxBackend) content() box {
	return box{
		W: float64((docxPageW - 2*docxMargin) * emuPerTwip),
		H: float64((docxPageH - 2*docxMargin - docxReserve) * emuPerTwip),
	}
}

func (b *docxBackend) addImage(img *preparedImage, name string) error {
	n := len(b.media) + 1
	part := mediaPart{
		RelID: fmt.Sprintf("rIdImg%d", n),
		Path:  fmt.Sprintf("media/image%d.%s", n, img.ext),
		Ext:   img.ext,
		Data:  img.data,
	}
	r := fitImage(img.width, img.height, b.content(), emuPerPx)
	b.media = append(b.media, part)
	b.units = append(b.units, docxUnit{Image: &docxImage{
		ID:    n,
		RelID: part.RelID,
		Name:  name,
		CX:    int64(r.W),
		CY:    int64(r.H),
	}})
	return nil
}

func (b *docxBackend) addPlaceholder(text string) error {
	b.units = append(b.units, docxUnit{Text: text})
	return nil
}

func (b *docxBackend) bytes() ([]byte, error) {
	p := newOOXMLPackage()
	p.writeCommonParts("word/document.xml", []contentOverride{{
		PartName:    "/word/document.xml",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml",
	}}, b.meta)
	p.addTemplate("word/document.xml", docxDocumentTmpl, docxView{
		Units: b.units, PageW: docxPageW, PageH: docxPageH, Margin: docxMargin,
	})
	p.addTemplate("word/_rels/document.xml.rels", docxRelsTmpl, b.media)
	for _, m := range b.media {
		p.add("word/"+m.Path, m.Data)
	}
	return p.bytes()
}

var docxRelsTmpl = parseTemplate("docx_rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
{{- range .}}
<Relationship Id="{{.RelID}}" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="{{.Path}}"/>
{{- end}}
</Relationships>`)

var docxDocumentTmpl = parseTemplate("docx_document", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<w:body>
{{- range $i, $u := .Units}}
<w:p><w:pPr>{{if $i}}<w:pageBreakBefore/>{{end}}<w:spacing w:before="0" w:after="0"/><w:jc w:val="center"/></w:pPr>
{{- if $u.Image}}{{with $u.Image}}<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0"><wp:extent cx="{{.CX}}" cy="{{.CY}}"/><wp:docPr id="{{.ID}}" name="Picture {{.ID}}" descr="{{xml .Name}}"/><a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture"><pic:pic><pic:nvPicPr><pic:cNvPr id="{{.ID}}" name="{{xml .Name}}"/><pic:cNvPicPr/></pic:nvPicPr><pic:blipFill><a:blip r:embed="{{.RelID}}"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill><pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="{{.CX}}" cy="{{.CY}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>{{end}}
{{- else}}<w:r><w:rPr><w:color w:val="5A5A5A"/><w:sz w:val="28"/></w:rPr><w:t xml:space="preserve">{{xml $u.Text}}</w:t></w:r>{{end}}</w:p>
{{- end}}
<w:sectPr><w:pgSz w:w="{{.PageW}}" w:h="{{.PageH}}"/><w:pgMar w:top="{{.Margin}}" w:right="{{.Margin}}" w:bottom="{{.Margin}}" w:left="{{.Margin}}" w:header="720" w:footer="720" w:gutter="0"/><w:vAlign w:val="center"/></w:sectPr>
</w:body>
</w:document>`)

package render

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/classdocs/constants"
)

// 16:9 slide in EMU, with a half-inch content margin.
const (
	slideW      = 12192000
	slideH      = 6858000
	slideMargin = 457200
)

// PPTXConverter writes one slide per unit.
type PPTXConverter struct {
	opts Options
}

func NewPPTXConverter(opts Options) *PPTXConverter {
	return &PPTXConverter{opts: opts.withDefaults()}
}

func (c *PPTXConverter) Format() constants.Format { return constants.FormatPPTX }
func (c *PPTXConverter) MIMEType() string         { return constants.FormatPPTX.MIMEType() }
func (c *PPTXConverter) Extension() string        { return constants.FormatPPTX.Extension() }

func (c *PPTXConverter) Render(ctx context.Context, sources []Source, meta Metadata) (*Document, error) {
	return driver{format: constants.FormatPPTX, opts: c.opts}.render(ctx, sources, &pptxBackend{meta: meta})
}

type pptxSlide struct {
	Number int
	Name   string
	Text   string
	Media  *mediaPart
	X, Y   int64
	CX, CY int64
}

type pptxBackend struct {
	meta   Metadata
	slides []pptxSlide
}

var slideContent = box{
	X: slideMargin, Y: slideMargin,
	W: slideW - 2*slideMargin, H: slideH - 2*slideMargin,
}

func (b *pptxBackend) addImage(img *preparedImage, name string) error {
	n := len(b.slides) + 1
	r := fitImage(img.width, img.height, slideContent, emuPerPx)
	b.slides = append(b.slides, pptxSlide{
		Number: n,
		Name:   name,
		Media: &mediaPart{
			RelID: "rId2",
			Path:  fmt.Sprintf("media/image%d.%s", n, img.ext),
			Ext:   img.ext,
			Data:  img.data,
		},
		X:  int64(r.X),
		Y:  int64(r.Y),
		CX: int64(r.W),
		CY: int64(r.H),
	})
	return nil
}

func (b *pptxBackend) addPlaceholder(text string) error {
	b.slides = append(b.slides, pptxSlide{
		Number: len(b.slides) + 1,
		Text:   text,
		X:      int64(slideContent.X),
		Y:      int64(slideContent.Y),
		CX:     int64(slideContent.W),
		CY:     int64(slideContent.H),
	})
	return nil
}

func (b *pptxBackend) bytes() ([]byte, error) {
	overrides := []contentOverride{
		{PartName: "/ppt/presentation.xml", ContentType: "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"},
		{PartName: "/ppt/slideMasters/slideMaster1.xml", ContentType: "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"},
		{PartName: "/ppt/slideLayouts/slideLayout1.xml", ContentType: "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"},
		{PartName: "/ppt/theme/theme1.xml", ContentType: "application/vnd.openxmlformats-officedocument.theme+xml"},
	}
	for _, s := range b.slides {
		overrides = append(overrides, contentOverride{
			PartName:    fmt.Sprintf("/ppt/slides/slide%d.xml", s.Number),
			ContentType: "application/vnd.openxmlformats-officedocument.presentationml.slide+xml",
		})
	}

	p := newOOXMLPackage()
	p.writeCommonParts("ppt/presentation.xml", overrides, b.meta)
	p.addTemplate("ppt/presentation.xml", pptxPresentationTmpl, pptxView{Slides: b.slides, W: slideW, H: slideH})
	p.addTemplate("ppt/_rels/presentation.xml.rels", pptxPresentationRelsTmpl, b.slides)
	p.add("ppt/slideMasters/slideMaster1.xml", []byte(pptxSlideMaster))
	p.add("ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(pptxSlideMasterRels))
	p.add("ppt/slideLayouts/slideLayout1.xml", []byte(pptxSlideLayout))
	p.add("ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(pptxSlideLayoutRels))
	p.add("ppt/theme/theme1.xml", []byte(pptxTheme))
	for _, s := range b.slides {
		p.addTemplate(fmt.Sprintf("ppt/slides/slide%d.xml", s.Number), pptxSlideTmpl, s)
		p.addTemplate(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", s.Number), pptxSlideRelsTmpl, s)
		if s.Media != nil {
			p.add("ppt/"+s.Media.Path, s.Media.Data)
		}
	}
	return p.bytes()
}

type pptxView struct {
	Slides []pptxSlide
	W, H   int
}

const pmlNamespaces = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

const emptySpTree = `<p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree>`

var pptxPresentationTmpl = parseTemplate("pptx_presentation", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:presentation `+pmlNamespaces+`>
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst>
{{- range .Slides}}
<p:sldId id="{{add .Number 255}}" r:id="rIdSlide{{.Number}}"/>
{{- end}}
</p:sldIdLst>
<p:sldSz cx="{{.W}}" cy="{{.H}}"/>
<p:notesSz cx="6858000" cy="9144000"/>
</p:presentation>`)

var pptxPresentationRelsTmpl = parseTemplate("pptx_presentation_rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>
<Relationship Id="rIdTheme1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>
{{- range .}}
<Relationship Id="rIdSlide{{.Number}}" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide{{.Number}}.xml"/>
{{- end}}
</Relationships>`)

var pptxSlideTmpl = parseTemplate("pptx_slide", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld `+pmlNamespaces+`>
<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>
{{- if .Media}}
<p:pic><p:nvPicPr><p:cNvPr id="2" name="Picture {{.Number}}" descr="{{xml .Name}}"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr><p:blipFill><a:blip r:embed="{{.Media.RelID}}"/><a:stretch><a:fillRect/></a:stretch></p:blipFill><p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.CX}}" cy="{{.CY}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>
{{- else}}
<p:sp><p:nvSpPr><p:cNvPr id="2" name="Placeholder {{.Number}}"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr><p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.CX}}" cy="{{.CY}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:ln w="9525"><a:solidFill><a:srgbClr val="B4B4B4"/></a:solidFill></a:ln></p:spPr><p:txBody><a:bodyPr anchor="ctr"/><a:lstStyle/><a:p><a:pPr algn="ctr"/><a:r><a:rPr lang="en-US" sz="2400"><a:solidFill><a:srgbClr val="5A5A5A"/></a:solidFill></a:rPr><a:t>{{xml .Text}}</a:t></a:r></a:p></p:txBody></p:sp>
{{- end}}
</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sld>`)

var pptxSlideRelsTmpl = parseTemplate("pptx_slide_rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
{{- if .Media}}
<Relationship Id="{{.Media.RelID}}" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../{{.Media.Path}}"/>
{{- end}}
</Relationships>`)

const pptxSlideMaster = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldMaster ` + pmlNamespaces + `>
<p:cSld>` + emptySpTree + `</p:cSld>
<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>
<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>
</p:sldMaster>`

const pptxSlideMasterRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>
</Relationships>`

const pptxSlideLayout = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sldLayout ` + pmlNamespaces + ` type="blank" preserve="1">
<p:cSld name="Blank">` + emptySpTree + `</p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sldLayout>`

const pptxSlideLayoutRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>
</Relationships>`

const pptxTheme = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="classdocs">
<a:themeElements>
<a:clrScheme name="classdocs">
<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>
<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>
<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>
<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>
<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>
<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink>
</a:clrScheme>
<a:fontScheme name="classdocs">
<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>
<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>
</a:fontScheme>
<a:fmtScheme name="classdocs">
<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>
<a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>
<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>
<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>
</a:fmtScheme>
</a:themeElements>
</a:theme>`

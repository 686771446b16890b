package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// ooxmlPackage accumulates the parts of an Office Open XML zip.
type ooxmlPackage struct {
	buf bytes.Buffer
	zw  *zip.Writer
	err error
}

func newOOXMLPackage() *ooxmlPackage {
	p := &ooxmlPackage{}
	p.zw = zip.NewWriter(&p.buf)
	return p
}

func (p *ooxmlPackage) add(name string, data []byte) {
	if p.err != nil {
		return
	}
	method := zip.Deflate
	if strings.HasPrefix(name, "word/media/") || strings.HasPrefix(name, "ppt/media/") {
		method = zip.Store
	}
	w, err := p.zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		p.err = fmt.Errorf("create part %s: %w", name, err)
		return
	}
	if _, err := w.Write(data); err != nil {
		p.err = fmt.Errorf("write part %s: %w", name, err)
	}
}

func (p *ooxmlPackage) addTemplate(name string, t *template.Template, data any) {
	if p.err != nil {
		return
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		p.err = fmt.Errorf("render part %s: %w", name, err)
		return
	}
	p.add(name, buf.Bytes())
}

func (p *ooxmlPackage) bytes() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	if err := p.zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return p.buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func parseTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{
		"xml": xmlEscape,
		"add": func(a, b int) int { return a + b },
	}).Parse(text))
}

// mediaPart is an embedded image and its relationship id.
type mediaPart struct {
	RelID string
	Path  string
	Ext   string
	Data  []byte
}

type contentTypes struct {
	Overrides []contentOverride
}

type contentOverride struct {
	PartName    string
	ContentType string
}

var contentTypesTmpl = parseTemplate("content_types", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Default Extension="png" ContentType="image/png"/>
<Default Extension="jpeg" ContentType="image/jpeg"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>
{{- range .Overrides}}
<Override PartName="{{.PartName}}" ContentType="{{.ContentType}}"/>
{{- end}}
</Types>`)

type coreProps struct {
	Title   string
	Creator string
	Created string
}

func newCoreProps(meta Metadata) coreProps {
	created := meta.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return coreProps{
		Title:   meta.Title,
		Creator: meta.Author,
		Created: created.UTC().Format(time.RFC3339),
	}
}

var corePropsTmpl = parseTemplate("core", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>{{xml .Title}}</dc:title>
<dc:creator>{{xml .Creator}}</dc:creator>
<dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created>
<dcterms:modified xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:modified>
</cp:coreProperties>`)

var appPropsTmpl = parseTemplate("app", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
<Application>classdocs</Application>
</Properties>`)

var rootRelsTmpl = parseTemplate("root_rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="{{.}}"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>
</Relationships>`)

// writeCommonParts adds the content types, package relationships and
// document properties shared by DOCX and PPTX.
func (p *ooxmlPackage) writeCommonParts(mainPart string, overrides []contentOverride, meta Metadata) {
	p.addTemplate("[Content_Types].xml", contentTypesTmpl, contentTypes{Overrides: overrides})
	p.addTemplate("_rels/.rels", rootRelsTmpl, mainPart)
	p.addTemplate("docProps/core.xml", corePropsTmpl, newCoreProps(meta))
	p.addTemplate("docProps/app.xml", appPropsTmpl, nil)
}

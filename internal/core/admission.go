package core

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// SubmitRequest is a candidate batch as received from a transport.
type SubmitRequest struct {
	Owner        string
	Uploads      []entity.Upload
	TargetFormat string
	Destination  string
	Title        string
}

// AdmittedBatch is a batch that passed validation. MIME types are
// normalized.
type AdmittedBatch struct {
	Owner       string
	Uploads     []entity.Upload
	Items       []entity.InputItem
	Format      constants.Format
	Destination string
	Title       string
}

const maxTitleLength = 200

// ValidateBatch checks a candidate batch without side effects. Every
// violation is collected into a single ADMISSION_REJECTED error.
func ValidateBatch(req SubmitRequest) (*AdmittedBatch, error) {
	v := common.NewValidator()
	v.Field("owner", req.Owner, common.Required)
	v.Field("destination", req.Destination, common.Required)
	v.Field("title", req.Title, common.MaxLength(maxTitleLength))

	format, _ := constants.ParseFormat(req.TargetFormat)
	v.Field("target_format", string(format), common.OneOf(constants.Formats...))

	switch n := len(req.Uploads); {
	case n == 0:
		v.Fail("items", n, "must contain at least one image")
	case n > constants.MaxBatch:
		v.Fail("items", n, fmt.Sprintf("must contain at most %d images", constants.MaxBatch))
	}

	uploads := make([]entity.Upload, len(req.Uploads))
	items := make([]entity.InputItem, len(req.Uploads))
	for i, up := range req.Uploads {
		field := fmt.Sprintf("items[%d]", i)
		size := len(up.Data)
		switch {
		case size == 0:
			v.Fail(field, up.Name, "is empty")
		case size > constants.MaxItemBytes:
			v.Fail(field, up.Name, fmt.Sprintf("is %d bytes, limit is %d", size, constants.MaxItemBytes))
		}

		mt := imageType(up)
		if !constants.AllowedImageType(mt) {
			v.Fail(field, up.Name, fmt.Sprintf("has unsupported type %q", mt))
		}

		uploads[i] = entity.Upload{Name: itemName(up.Name, i), MIMEType: mt, Data: up.Data}
		items[i] = entity.InputItem{Name: uploads[i].Name, ByteSize: int64(size), MIMEType: mt}
	}

	if err := v.AdmissionError(); err != nil {
		return nil, err
	}
	return &AdmittedBatch{
		Owner:       strings.TrimSpace(req.Owner),
		Uploads:     uploads,
		Items:       items,
		Format:      format,
		Destination: strings.TrimSpace(req.Destination),
		Title:       strings.TrimSpace(req.Title),
	}, nil
}

// imageType resolves an item's MIME type from its declared type, then its
// content, then its extension.
func imageType(up entity.Upload) string {
	if mt := constants.NormalizeMIME(up.MIMEType); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if len(up.Data) > 0 {
		if mt := constants.NormalizeMIME(http.DetectContentType(up.Data)); constants.AllowedImageType(mt) {
			return mt
		}
	}
	if mt := constants.ImageTypeByExt(filepath.Ext(up.Name)); mt != "" {
		return mt
	}
	return constants.NormalizeMIME(up.MIMEType)
}

func itemName(name string, i int) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("image-%d", i+1)
	}
	return name
}

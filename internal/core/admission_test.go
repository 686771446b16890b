package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/testutil"
)

func jpegs(n int) []entity.Upload {
	out := make([]entity.Upload, n)
	for i := range out {
		out[i] = entity.Upload{Name: "photo.jpg", MIMEType: "image/jpeg", Data: testutil.JPEG(32, 24)}
	}
	return out
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Owner:        "instructor-1",
		Uploads:      jpegs(3),
		TargetFormat: "pdf",
		Destination:  "CS101",
		Title:        "Week 1",
	}
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(r *SubmitRequest)
		wantField string
		wantMsg   string
	}{
		{
			name:      "no items",
			mutate:    func(r *SubmitRequest) { r.Uploads = nil },
			wantField: "items",
			wantMsg:   "at least one image",
		},
		{
			name:      "more than the batch limit",
			mutate:    func(r *SubmitRequest) { r.Uploads = jpegs(constants.MaxBatch + 1) },
			wantField: "items",
			wantMsg:   "at most 20 images",
		},
		{
			name: "item over the size limit",
			mutate: func(r *SubmitRequest) {
				r.Uploads = []entity.Upload{{Name: "big.jpg", MIMEType: "image/jpeg", Data: make([]byte, 11<<20)}}
			},
			wantField: "items[0]",
			wantMsg:   "limit is 10485760",
		},
		{
			name: "empty item",
			mutate: func(r *SubmitRequest) {
				r.Uploads[1] = entity.Upload{Name: "empty.png", MIMEType: "image/png"}
			},
			wantField: "items[1]",
			wantMsg:   "is empty",
		},
		{
			name: "unsupported type",
			mutate: func(r *SubmitRequest) {
				r.Uploads[2] = entity.Upload{Name: "notes.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")}
			},
			wantField: "items[2]",
			wantMsg:   `unsupported type "application/pdf"`,
		},
		{
			name:      "unknown target format",
			mutate:    func(r *SubmitRequest) { r.TargetFormat = "odt" },
			wantField: "target_format",
			wantMsg:   "must be one of pdf, docx, pptx",
		},
		{
			name:      "blank destination",
			mutate:    func(r *SubmitRequest) { r.Destination = "  " },
			wantField: "destination",
			wantMsg:   "is required",
		},
		{
			name:      "missing owner",
			mutate:    func(r *SubmitRequest) { r.Owner = "" },
			wantField: "owner",
			wantMsg:   "is required",
		},
		{
			name:      "title too long",
			mutate:    func(r *SubmitRequest) { r.Title = strings.Repeat("x", 201) },
			wantField: "title",
			wantMsg:   "at most 200 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := validRequest()
			tt.mutate(&req)

			batch, err := ValidateBatch(req)
			require.Error(t, err)
			assert.Nil(t, batch)
			assert.True(t, common.IsAdmission(err))

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, common.CodeAdmission, appErr.Code)
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Contains(t, appErr.Message, tt.wantMsg)
		})
	}
}

func TestValidateBatch_Accepts(t *testing.T) {
	t.Parallel()
	req := validRequest()
	req.Uploads = []entity.Upload{
		{Name: "a.jpg", MIMEType: "image/jpg", Data: testutil.JPEG(8, 8)},
		{Name: "b", MIMEType: "", Data: testutil.PNG(8, 8)},
		{Name: "dir/c.gif", MIMEType: "application/octet-stream", Data: testutil.GIF(8, 8)},
		{Name: "", MIMEType: "IMAGE/PNG; charset=binary", Data: testutil.PNG(4, 4)},
	}
	req.TargetFormat = " PPTX "
	req.Destination = " CS101 "

	batch, err := ValidateBatch(req)
	require.NoError(t, err)
	assert.Equal(t, constants.FormatPPTX, batch.Format)
	assert.Equal(t, "CS101", batch.Destination)
	require.Len(t, batch.Items, 4)
	assert.Equal(t, "image/jpeg", batch.Items[0].MIMEType)
	assert.Equal(t, "image/png", batch.Items[1].MIMEType)
	assert.Equal(t, "image/gif", batch.Items[2].MIMEType)
	assert.Equal(t, "c.gif", batch.Items[2].Name)
	assert.Equal(t, "image-4", batch.Items[3].Name)
	assert.Equal(t, "image/png", batch.Items[3].MIMEType)
	assert.Equal(t, int64(len(req.Uploads[0].Data)), batch.Items[0].ByteSize)
	assert.Equal(t, batch.Items[1].MIMEType, batch.Uploads[1].MIMEType)
}

func TestValidateBatch_CollectsEveryViolation(t *testing.T) {
	t.Parallel()
	_, err := ValidateBatch(SubmitRequest{Owner: "u", TargetFormat: "gif"})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Empty(t, appErr.Field)
	assert.Contains(t, appErr.Message, "destination is required")
	assert.Contains(t, appErr.Message, "target_format must be one of")
	assert.Contains(t, appErr.Message, "items must contain at least one image")
}

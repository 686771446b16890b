package export

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/classdocs/internal/entity"
)

// MaxRows bounds one report.
const MaxRows = 1000

// JobLister lists an owner's jobs, newest first.
type JobLister interface {
	ListJobs(ctx context.Context, owner string, limit int) ([]*entity.Job, error)
}

// Service produces XLSX reports of conversion jobs.
type Service struct {
	jobs   JobLister
	logger *slog.Logger
}

func NewService(jobs JobLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

var headers = []string{
	"Job ID",
	"Submitted",
	"Status",
	"Format",
	"Destination",
	"Title",
	"Images",
	"Placeholders",
	"Duration (ms)",
	"Document",
	"Size (bytes)",
	"Material ID",
	"Error",
}

// JobsXLSX returns an XLSX workbook (as bytes) listing the owner's jobs.
func (s *Service) JobsXLSX(ctx context.Context, owner string) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListJobs(ctx, owner, MaxRows)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	const sheet = "Conversions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, j := range jobs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.ID.String())
		write(2, j.CreatedAt.UTC().Format(time.RFC3339))
		write(3, string(j.Status))
		write(4, string(j.TargetFormat))
		write(5, j.Destination)
		write(6, j.Title)
		write(7, len(j.Items))
		write(8, placeholderList(j.Placeholders))
		if j.ProcessingDurationMs != nil {
			write(9, *j.ProcessingDurationMs)
		}
		if j.Result != nil {
			write(10, j.Result.URL)
			write(11, j.Result.ByteSize)
			write(12, j.Result.MaterialID)
		}
		if j.ErrorDetail != nil {
			write(13, truncate(*j.ErrorDetail, 300))
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 22) // submitted
	_ = f.SetColWidth(sheet, "C", "D", 12)
	_ = f.SetColWidth(sheet, "E", "F", 28)
	_ = f.SetColWidth(sheet, "G", "I", 14)
	_ = f.SetColWidth(sheet, "J", "J", 60) // url
	_ = f.SetColWidth(sheet, "K", "L", 18)
	_ = f.SetColWidth(sheet, "M", "M", 48) // error
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"owner", owner,
		"rows", len(jobs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// placeholderList renders item positions, e.g. "2, 5".
func placeholderList(positions []int) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

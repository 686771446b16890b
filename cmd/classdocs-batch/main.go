package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/classdocs/constants"
	"github.com/joseph-ayodele/classdocs/internal/common"
	"github.com/joseph-ayodele/classdocs/internal/core"
	"github.com/joseph-ayodele/classdocs/internal/entity"
	"github.com/joseph-ayodele/classdocs/internal/ingest"
)

type options struct {
	dir          string
	format       string
	destination  string
	title        string
	owner        string
	dbPath       string
	outDir       string
	serverAddr   string
	report       string
	pollInterval time.Duration
	maxAttempts  int
	logLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "classdocs-batch",
		Short: "Convert a directory of images into one document",
		Long: "Convert every image under a directory, in path order, into a single PDF, DOCX or PPTX.\n" +
			"Runs the pipeline in-process against SQLite and local storage, or submits to a running\n" +
			"classdocsd when --server is set.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dir, "dir", "", "directory of images to convert (required)")
	f.StringVar(&opts.format, "format", "pdf", "output format: pdf, docx or pptx")
	f.StringVar(&opts.destination, "destination", "local", "destination the document is registered to")
	f.StringVar(&opts.title, "title", "", "document title (defaults to the directory name)")
	f.StringVar(&opts.owner, "owner", "local", "owner id the job is submitted as")
	f.StringVar(&opts.dbPath, "db", "", "SQLite job store path (in-memory when empty)")
	f.StringVar(&opts.outDir, "out", "", "artifact output directory (defaults to <dir>/../classdocs-out)")
	f.StringVar(&opts.serverAddr, "server", "", "gRPC address of a classdocsd to submit to instead of converting locally")
	f.StringVar(&opts.report, "report", "", "write an XLSX job report to this path")
	f.DurationVar(&opts.pollInterval, "poll-interval", 500*time.Millisecond, "status polling interval")
	f.IntVar(&opts.maxAttempts, "max-attempts", 600, "status polls before giving up")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func run(ctx context.Context, opts *options, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := common.NewLogger(cmd.ErrOrStderr(), opts.logLevel, "json")
	slog.SetDefault(logger)

	uploads, results, stats, err := ingest.ScanDirectory(ctx, opts.dir, true)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != "" {
			logger.Warn("batch.file.skipped", "path", r.Path, "error", r.Err)
		}
	}
	logger.Info("batch.scan.done", "scanned", stats.Scanned, "matched", stats.Matched, "read", stats.Read, "failed", stats.Failed)
	if len(uploads) == 0 {
		return fmt.Errorf("no images found in %s", opts.dir)
	}
	if opts.title == "" {
		opts.title = filepath.Base(filepath.Clean(opts.dir))
	}

	var be backend
	if opts.serverAddr != "" {
		be, err = newRemoteBackend(opts.serverAddr)
	} else {
		outDir := opts.outDir
		if outDir == "" {
			outDir = filepath.Join(filepath.Dir(filepath.Clean(opts.dir)), "classdocs-out")
		}
		be, err = newLocalBackend(ctx, opts.dbPath, outDir, logger)
	}
	if err != nil {
		return err
	}
	defer be.close()

	id, err := be.submit(ctx, core.SubmitRequest{
		Owner:        opts.owner,
		Uploads:      uploads,
		TargetFormat: opts.format,
		Destination:  opts.destination,
		Title:        opts.title,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted job %s (%d images)\n", id, len(uploads))

	job, err := core.WaitForTerminal(ctx, be, id, opts.owner, core.PollPolicy{Interval: opts.pollInterval, MaxAttempts: opts.maxAttempts})
	if err != nil {
		return err
	}
	printJob(cmd, job)

	if opts.report != "" {
		data, err := be.report(ctx, opts.owner)
		if err != nil {
			return fmt.Errorf("report: %w", err)
		}
		if err := os.WriteFile(opts.report, data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", opts.report)
	}

	if job.Status == constants.JobStatusFailed {
		return fmt.Errorf("conversion failed")
	}
	return nil
}

func printJob(cmd *cobra.Command, job *entity.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", job.Status)
	if job.ProcessingDurationMs != nil {
		fmt.Fprintf(out, "duration: %dms\n", *job.ProcessingDurationMs)
	}
	if job.Result != nil {
		fmt.Fprintf(out, "document: %s (%d bytes)\n", job.Result.URL, job.Result.ByteSize)
		fmt.Fprintf(out, "material: %s\n", job.Result.MaterialID)
	}
	for _, pos := range job.Placeholders {
		if pos >= 1 && pos <= len(job.Items) {
			fmt.Fprintf(out, "placeholder: image %d (%s) could not be processed\n", pos, job.Items[pos-1].Name)
		}
	}
	if job.ErrorDetail != nil {
		fmt.Fprintf(out, "error: %s\n", *job.ErrorDetail)
	}
}

// Package converter streams tabular rows through the FSH emitter and writes
// the resulting concept blocks.
package converter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giygas/fsh-designations/fsh"
	"github.com/giygas/fsh-designations/interfaces"
	"github.com/giygas/fsh-designations/logging"
	"github.com/giygas/fsh-designations/metrics"
	"github.com/giygas/fsh-designations/tabular"
	"github.com/giygas/fsh-designations/validation"
)

// DefaultOutputExtension replaces the input extension when no output path is given.
const DefaultOutputExtension = ".fsh"

// Conversion modes, used as the "mode" metrics label.
const (
	ModeCLI       = "cli"
	ModeHTTP      = "http"
	ModeScheduled = "scheduled"
)

// Summary describes one finished conversion.
type Summary = interfaces.ConversionSummary

// Options configure a conversion.
type Options struct {
	Input           string
	Output          string // DefaultOutputPath(Input, OutputExtension) when empty
	Mapping         fsh.RoleMapping
	ExtraPrefix     string
	Sheet           string
	Encoding        string
	Format          tabular.Format
	OutputExtension string
	Mode            string
}

func (o Options) sourceOptions() tabular.Options {
	return tabular.Options{Format: o.Format, Sheet: o.Sheet, Encoding: o.Encoding}
}

func (o Options) mode() string {
	if o.Mode == "" {
		return ModeCLI
	}
	return o.Mode
}

// DefaultOutputPath swaps the extension of input for ext.
func DefaultOutputPath(input, ext string) string {
	if ext == "" {
		ext = DefaultOutputExtension
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

// ConvertFile converts opts.Input into opts.Output. Configuration and column
// errors are reported before the output is created. The output is written to
// a temporary file in the target directory and only renamed into place once
// every row has been written, so a failed run never leaves a partial file.
func ConvertFile(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	summary, err := convertFile(ctx, opts)
	finish(&summary, opts.mode(), start, err)
	return summary, err
}

func convertFile(ctx context.Context, opts Options) (Summary, error) {
	output := opts.Output
	if output == "" {
		output = DefaultOutputPath(opts.Input, opts.OutputExtension)
	}

	src, err := tabular.Open(opts.Input, opts.sourceOptions())
	if err != nil {
		return Summary{Input: opts.Input}, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logging.Warn("Failed to close input", "input", opts.Input, "error", err)
		}
	}()

	res, err := fsh.Resolve(src.Columns(), opts.Mapping, opts.ExtraPrefix)
	if err != nil {
		return Summary{Input: opts.Input}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(output), "."+filepath.Base(output)+".*.tmp")
	if err != nil {
		return Summary{Input: opts.Input}, fmt.Errorf("failed to create output %s: %w", output, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to remove temporary output", "path", tmp.Name(), "error", err)
		}
	}()

	summary, err := stream(ctx, src, res, tmp, opts.Input)
	if err != nil {
		return summary, err
	}

	if err := tmp.Chmod(0o644); err != nil {
		return summary, fmt.Errorf("failed to set output permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return summary, fmt.Errorf("failed to close output %s: %w", output, err)
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return summary, fmt.Errorf("failed to move output into place: %w", err)
	}
	committed = true

	summary.Output = output
	return summary, nil
}

// Convert reads every row of src and writes FSH to w. On error w may hold a
// prefix of the document and should be discarded.
func Convert(ctx context.Context, src tabular.Source, w io.Writer, opts Options) (Summary, error) {
	start := time.Now()

	res, err := fsh.Resolve(src.Columns(), opts.Mapping, opts.ExtraPrefix)
	if err != nil {
		summary := Summary{Input: opts.Input}
		finish(&summary, opts.mode(), start, err)
		return summary, err
	}

	summary, err := stream(ctx, src, res, w, opts.Input)
	finish(&summary, opts.mode(), start, err)
	return summary, err
}

func stream(ctx context.Context, src tabular.Source, res fsh.Resolution, w io.Writer, input string) (Summary, error) {
	summary := Summary{Input: input, Plan: res.Plan}
	emitter := fsh.NewEmitter(res)
	quality := validation.NewQualityCollector(res.Plan)
	quality.RejectColumns(res.RejectedColumns)
	skipReasons := make(map[string]int)
	bw := bufio.NewWriter(w)

	for {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("conversion interrupted after %d rows: %w", summary.RowsRead, err)
		}

		row, rowNum, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		summary.RowsRead++

		block, err := emitter.Emit(rowNum, row)
		if err != nil {
			var skipped *fsh.RowSkipped
			if !errors.As(err, &skipped) {
				return summary, err
			}
			summary.RowsSkipped++
			skipReasons[skipped.Reason]++
			metrics.RowsTotal.WithLabelValues("skipped").Inc()
			logging.Debug("Row skipped", "input", input, "row", skipped.Row, "reason", skipped.Reason)
			continue
		}

		if summary.RowsEmitted > 0 {
			if err := bw.WriteByte('\n'); err != nil {
				return summary, fmt.Errorf("failed to write output: %w", err)
			}
		}
		if _, err := block.WriteTo(bw); err != nil {
			return summary, fmt.Errorf("failed to write output: %w", err)
		}

		summary.RowsEmitted++
		summary.Designations += len(block.Designations)
		quality.Observe(block)
		metrics.RowsTotal.WithLabelValues("emitted").Inc()
		for _, d := range block.Designations {
			metrics.DesignationsTotal.WithLabelValues(d.Language).Inc()
		}
	}

	if err := bw.Flush(); err != nil {
		return summary, fmt.Errorf("failed to write output: %w", err)
	}

	summary.Quality = quality.Report()

	if summary.RowsSkipped > 0 {
		attrs := []any{"input", input, "total_rows", summary.RowsRead, "rows_emitted", summary.RowsEmitted}
		for reason, n := range skipReasons {
			attrs = append(attrs, strings.ReplaceAll(reason, " ", "_"), n)
		}
		logging.Info("Conversion skip statistics", attrs...)
	}
	logQuality(input, summary.Quality)

	return summary, nil
}

func logQuality(input string, report *interfaces.DataQualityReport) {
	if !report.HasIssues() {
		return
	}
	if report.DuplicateCodeRows > 0 {
		logging.Warn("Duplicate codes emitted",
			"input", input,
			"duplicate_rows", report.DuplicateCodeRows,
			"codes", report.DuplicateCodes)
	}
	if len(report.DuplicateTags) > 0 {
		logging.Warn("Language tag fed by several columns", "input", input, "tags", report.DuplicateTags)
	}
	if len(report.RejectedTagColumns) > 0 {
		logging.Warn("Language columns ignored, tag not usable as a code",
			"input", input, "columns", report.RejectedTagColumns)
	}
	if report.RowsWithoutDesignations > 0 {
		logging.Warn("Rows emitted without designations",
			"input", input,
			"count", report.RowsWithoutDesignations,
			"sample_codes", report.RowsWithoutDesignationsCode)
	}
}

func finish(summary *Summary, mode string, start time.Time, err error) {
	summary.Duration = time.Since(start)
	summary.FinishedAt = time.Now()

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ConversionsTotal.WithLabelValues(mode, status).Inc()
	metrics.ConversionDuration.WithLabelValues(mode).Observe(summary.Duration.Seconds())

	if err != nil {
		logging.Error("Conversion failed", "input", summary.Input, "mode", mode, "error", err)
		return
	}
	logging.Info("Conversion completed",
		"input", summary.Input,
		"output", summary.Output,
		"mode", mode,
		"rows_read", summary.RowsRead,
		"rows_emitted", summary.RowsEmitted,
		"rows_skipped", summary.RowsSkipped,
		"designations", summary.Designations,
		"languages", summary.Plan.Tags(),
		"duration_ms", summary.Duration.Milliseconds())
}

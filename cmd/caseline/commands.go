package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/logflow/caseline/internal/model"
	"github.com/logflow/caseline/pkg/batch"
	"github.com/logflow/caseline/pkg/cache"
	"github.com/logflow/caseline/pkg/config"
	"github.com/logflow/caseline/pkg/export"
	"github.com/logflow/caseline/pkg/source"
	"github.com/logflow/caseline/pkg/storage/s3"
	"github.com/logflow/caseline/pkg/tui"
	"github.com/logflow/caseline/pkg/watch"
)

func runCases(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	src, _, err := a.openSource(ctx, inputFile)
	if err != nil {
		return err
	}
	defer src.Close()

	ids, err := src.CaseIDs(ctx)
	if err != nil {
		return err
	}

	if outputFile == "" {
		return export.WriteCaseList(os.Stdout, ids)
	}

	f, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.WriteCaseList(f, ids); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Printf("INFO: wrote %d case IDs to %s", len(ids), outputFile)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	src, _, err := a.openSource(ctx, inputFile)
	if err != nil {
		return err
	}
	defer src.Close()

	sum, err := src.Summary(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(sum)
	}
	tui.PrintHeader(os.Stdout, version)
	tui.RenderSummary(os.Stdout, inputFile, sum)
	return nil
}

func runIntervals(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	src, version, err := a.openSource(ctx, inputFile)
	if err != nil {
		return err
	}
	defer src.Close()

	computer, _, release, err := a.computer(ctx, src, inputFile, version)
	if err != nil {
		return err
	}
	defer release()

	res, err := computer.ComputeCaseIntervals(ctx, caseID)
	if err != nil {
		return err
	}
	return printResult(res)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	format := export.DetectFormat(outputFile, "")
	if format == export.FormatUnknown {
		format = export.ParseFormat(a.cfg.Export.Format)
	}
	if format == export.FormatUnknown {
		return fmt.Errorf("cannot determine export format for %s", outputFile)
	}

	src, version, err := a.openSource(ctx, inputFile)
	if err != nil {
		return err
	}
	defer src.Close()

	var ids []string
	if casesFile != "" {
		ids, err = readCaseList(casesFile)
	} else {
		ids, err = src.CaseIDs(ctx)
	}
	if err != nil {
		return err
	}
	a.logger.Printf("INFO: computing %d cases", len(ids))

	computer, _, release, err := a.computer(ctx, src, inputFile, version)
	if err != nil {
		return err
	}
	defer release()

	bar := tui.ShowProgress(os.Stderr, int64(len(ids)), "Computing")
	runner := batch.NewRunner(computer, a.batchConfig(), batch.WithProgress(func(done, total int) {
		bar.Set(done)
	}))

	report, runErr := runner.Run(ctx, ids)
	bar.Finish()

	for _, f := range report.Failures {
		a.logger.Printf("WARN: case %s failed: %v", f.CaseID, f.Err)
	}

	if runErr == nil || len(report.Results) > 0 {
		if err := a.save(ctx, format, report); err != nil {
			return err
		}
	}

	tui.RenderBatchReport(os.Stdout, report, outputFile)
	if runErr != nil {
		return runErr
	}
	return report.Err()
}

// save writes the successful results of a run to outputFile.
func (a *app) save(ctx context.Context, format export.Format, report *batch.Report) error {
	opts := export.DefaultOptions()
	if a.cfg.Export.Compression != "" {
		opts.Compression = export.ParseCompression(a.cfg.Export.Compression)
	}
	meta := export.Metadata{
		RunID:     report.RunID,
		Source:    inputFile,
		CreatedAt: time.Now().UTC(),
	}

	var up export.Uploader
	if s3.IsURI(outputFile) {
		client, err := s3.NewClient(ctx, a.s3Config())
		if err != nil {
			return err
		}
		up = client
	}

	if err := export.Save(ctx, outputFile, format, report.Results, meta, opts, up); err != nil {
		return err
	}
	a.logger.Printf("INFO: wrote %d cases to %s", len(report.Results), outputFile)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if s3.IsURI(inputFile) {
		return fmt.Errorf("watch needs a local file, got %s", inputFile)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var (
		current     source.Source
		prevCached  *cache.Engine
		prevRelease = func() {}
	)
	defer func() {
		prevRelease()
		if current != nil {
			current.Close()
		}
	}()

	recompute := func(ctx context.Context) error {
		src, version, err := a.openSource(ctx, inputFile)
		if err != nil {
			return err
		}
		if current != nil {
			current.Close()
		}
		current = src

		// Entries of the previous version can never be hit again.
		if prevCached != nil {
			if err := prevCached.Invalidate(ctx); err != nil {
				a.logger.Printf("WARN: cache invalidate: %v", err)
			}
		}
		prevRelease()

		computer, cached, release, err := a.computer(ctx, src, inputFile, version)
		if err != nil {
			prevCached, prevRelease = nil, func() {}
			return err
		}
		prevCached, prevRelease = cached, release

		res, err := computer.ComputeCaseIntervals(ctx, caseID)
		if err != nil {
			return err
		}
		return printResult(res)
	}

	if err := recompute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}

	w, err := watch.NewWatcher(watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	w.OnChange = func(ctx context.Context, path string) error {
		a.logger.Printf("INFO: %s changed", path)
		return recompute(ctx)
	}
	w.OnError = func(path string, err error) {
		fmt.Fprintf(os.Stderr, "ERROR: %s: %v\n", path, err)
	}

	if err := w.Watch(inputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", inputFile)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	m := config.NewManager()
	if err := m.Load(configFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, m.Get()); err != nil {
		return err
	}

	out, err := m.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func printResult(res *model.CaseResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	tui.RenderCase(os.Stdout, res)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gunturawaludins/mkbd-new/internal/config"
	"github.com/gunturawaludins/mkbd-new/internal/enrichment"
	"github.com/gunturawaludins/mkbd-new/internal/exporter"
	"github.com/gunturawaludins/mkbd-new/internal/masterdata"
	"github.com/gunturawaludins/mkbd-new/internal/pipeline"
	"github.com/gunturawaludins/mkbd-new/internal/store"
	"github.com/gunturawaludins/mkbd-new/internal/validation"
)

type extractOptions struct {
	master      string
	outDir      string
	format      string
	persist     bool
	concurrency int
}

// fileReport is one line of the extract summary.
type fileReport struct {
	File       string   `json:"file"`
	Success    bool     `json:"success"`
	Sheets     int      `json:"sheets"`
	Warnings   int      `json:"warnings"`
	GrandTotal float64  `json:"grandTotalRankingLiabilities"`
	Outputs    []string `json:"outputs,omitempty"`
	Persisted  int      `json:"persistedRecords,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

func newExtractCmd(c *cli) *cobra.Command {
	opts := extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract <workbook|directory>...",
		Short: "Extract one or more workbooks and export the normalised tables",
		Long: `Extract MKBD workbooks (.xlsx or .xls) and export every normalised table.
Directories expand to the workbooks directly inside them, oldest first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExtract(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.master, "master", "", "Issuer reference workbook used for enrichment")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "out", "Output directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "csv", "Output format: csv, xlsx, json")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Append results to the configured table store")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", runtime.NumCPU(), "Workbooks processed in parallel")
	return cmd
}

func (c *cli) runExtract(ctx context.Context, out io.Writer, opts extractOptions, args []string) error {
	format, err := exporter.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	validator := validation.NewFileValidator(c.logger)
	files, err := validator.ExpandInputs(args)
	if err != nil {
		return err
	}
	if err := validator.ValidateOutputDirectory(opts.outDir); err != nil {
		return err
	}

	// a nil *Registry must not become a non-nil Lookup
	var lookup enrichment.Lookup
	if opts.master != "" {
		registry := masterdata.NewRegistry(opts.master, c.logger)
		if res := registry.LoadFile(opts.master); !res.Success {
			return fmt.Errorf("load master data: %s", strings.Join(res.Errors, "; "))
		}
		lookup = registry
	}

	var tables store.TableStore
	if opts.persist {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if cfg.Storage.Driver != config.StoragePostgres {
			c.logger.Warn("persisting to the in-memory store; records are discarded on exit")
		}
		if tables, err = store.Open(ctx, cfg.Storage, c.logger); err != nil {
			return fmt.Errorf("open table store: %w", err)
		}
		defer tables.Close()
	}

	reports := make([]fileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	for i, path := range files {
		g.Go(func() error {
			reports[i] = c.extractOne(gctx, path, lookup, tables, format, opts.outDir)
			// per-file failures are reported, not fatal; only cancellation stops the batch
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := printJSON(out, reports); err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d workbooks failed", failed, len(files))
	}
	return nil
}

func (c *cli) extractOne(ctx context.Context, path string, lookup enrichment.Lookup, tables store.TableStore, format exporter.Format, outDir string) fileReport {
	// pipelines carry per-run state, so each file gets its own
	res := pipeline.New(lookup, pipeline.WithLogger(c.logger)).ExtractFile(ctx, path)
	report := fileReport{
		File:       path,
		Success:    res.Success,
		Sheets:     len(res.Sheets),
		Warnings:   len(res.Warnings),
		GrandTotal: res.GrandTotal,
		Errors:     res.Errors,
	}
	if !res.Success {
		return report
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outputs, err := exporter.Export(ctx, outDir, base, format, res)
	report.Outputs = outputs
	if err != nil {
		report.Success = false
		report.Errors = append(report.Errors, fmt.Sprintf("export: %v", err))
		return report
	}

	if tables != nil {
		persisted, err := store.PersistResult(ctx, tables, res)
		if err != nil {
			report.Success = false
			report.Errors = append(report.Errors, fmt.Sprintf("persist: %v", err))
			return report
		}
		report.Persisted = persisted.Records
	}
	return report
}

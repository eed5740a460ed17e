package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wipacrepo/pubs/internal/importer"
)

var (
	importEncoding    string
	importDryRun      bool
	importSchedule    string
	importSourcesFile string
)

func init() {
	importCmd.Flags().StringVar(&importEncoding, "encoding", importer.DefaultEncoding, "Text encoding of the payload (IANA name, e.g. latin1)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate and show what would be inserted or replaced without writing")
	importCmd.Flags().StringVar(&importSchedule, "schedule", "", `Re-import on a cron schedule ("@hourly", "0 3 * * *") until interrupted`)
	importCmd.Flags().StringVar(&importSourcesFile, "sources-file", "", "File listing one source per line (# starts a comment)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import [source...]",
	Short: "Bulk-import publications from CSV or JSON",
	Long: `Bulk-import publications from CSV or JSON payloads.

A source is a local file, - for standard input, or an http(s) URL. Each
source is one batch: every record is validated before anything is written,
and a record with the same title, authors and date as a stored one
replaces it.

Examples:
  pubs import pubs.json
  pubs import --encoding latin1 legacy.csv
  pubs import --dry-run https://example.org/export.json
  pubs import --schedule @daily --sources-file feeds.txt`,
	RunE: runImport,
}

// SourceResult is the outcome of importing one source.
type SourceResult struct {
	Source string           `json:"source"`
	Result *importer.Result `json:"result,omitempty"`
	Plan   *importer.Plan   `json:"plan,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	sources := args
	if importSourcesFile != "" {
		listed, err := readSourcesFile(importSourcesFile)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		sources = append(sources, listed...)
	}
	if len(sources) == 0 {
		exitWithError(ExitError, "no import source given")
	}

	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	im := importer.New(a.store, a.svc.Validator(),
		importer.WithLogger(a.log),
		importer.WithMetrics(a.metrics),
		importer.WithConcurrency(a.cfg.ImportConcurrency),
		importer.WithWriteRate(a.cfg.ImportWriteRate),
	)
	src := importer.NewSource(os.Stdin)

	if importSchedule != "" {
		if importDryRun {
			a.fail(fmt.Errorf("--dry-run cannot be scheduled"), "scheduling import")
		}
		for _, s := range sources {
			if s == "-" {
				a.fail(fmt.Errorf("standard input cannot be re-read"), "scheduling import")
			}
		}
		return runScheduledImport(cmd.Context(), a, im, src, sources)
	}

	results, err := importSources(ctx, im, src, sources, importEncoding, importDryRun)
	if err != nil {
		if len(results) > 0 && !humanOutput {
			outputJSON(results)
		}
		a.fail(err, "importing %s", results[len(results)-1].Source)
	}

	if humanOutput {
		printImportHuman(results)
		return nil
	}
	return outputJSON(results)
}

// importSources runs each source as its own batch and stops at the first
// failure. The failing source is the last element of the returned slice.
func importSources(ctx context.Context, im *importer.Importer, src *importer.Source, sources []string,
	encoding string, dryRun bool) ([]SourceResult, error) {
	var results []SourceResult
	for _, location := range sources {
		sr := SourceResult{Source: location}
		results = append(results, sr)

		data, err := src.Read(ctx, location)
		if err != nil {
			return results, err
		}
		if dryRun {
			sr.Plan, err = im.Plan(ctx, data, encoding)
		} else {
			sr.Result, err = im.Import(ctx, data, encoding)
		}
		results[len(results)-1] = sr
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// runScheduledImport re-imports sources on importSchedule until SIGINT or
// SIGTERM. Failed runs are logged and retried at the next tick.
func runScheduledImport(parent context.Context, a *app, im *importer.Importer, src *importer.Source, sources []string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cron.New()
	_, err := c.AddFunc(importSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, a.cfg.QueryTimeout)
		defer cancel()

		a.log.Info("running scheduled import", zap.Strings("sources", sources))
		results, err := importSources(runCtx, im, src, sources, importEncoding, false)
		if err != nil {
			a.log.Error("scheduled import failed",
				zap.String("source", results[len(results)-1].Source),
				zap.Error(err))
		}
		if a.cfg.PushgatewayURL != "" {
			if err := a.metrics.Push(runCtx, a.cfg.PushgatewayURL, metricsJob); err != nil {
				a.log.Warn("pushing metrics failed", zap.Error(err))
			}
		}
	})
	if err != nil {
		a.fail(err, "parsing schedule %q", importSchedule)
	}

	c.Start()
	a.log.Info("import scheduled", zap.String("schedule", importSchedule), zap.Int("sources", len(sources)))
	<-ctx.Done()

	// Wait for a run in progress to finish.
	<-c.Stop().Done()
	a.log.Info("import schedule stopped")
	return nil
}

// readSourcesFile returns the non-empty, non-comment lines of path.
func readSourcesFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	return sources, nil
}

func printImportHuman(results []SourceResult) {
	for _, sr := range results {
		switch {
		case sr.Plan != nil:
			fmt.Printf("%s: would insert %d, would replace %d\n", sr.Source, sr.Plan.WouldInsert, sr.Plan.WouldReplace)
			for _, d := range sr.Plan.Details {
				fmt.Printf("  %-8s %s  %s\n", d.Action, d.Date, truncateString(d.Title, ImportTitleMaxLen))
			}
		case sr.Result != nil:
			fmt.Printf("%s: %d records, %d inserted, %d replaced (batch %s)\n",
				sr.Source, sr.Result.Total, sr.Result.Inserted, sr.Result.Replaced, sr.Result.BatchID)
		}
	}
}

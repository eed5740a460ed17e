package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/catalog"
	"github.com/wipacrepo/pubs/internal/export"
	"github.com/wipacrepo/pubs/internal/query"
)

var (
	exportCriteria query.Criteria
	exportFormat   string
	exportOutput   string
)

func init() {
	addCriteriaFlags(exportCmd, &exportCriteria)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format (json, csv)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export publications in an importable format",
	Long: `Export publications matching filters as JSON or CSV. JSON exports
re-import without loss; CSV joins multiple authors into one cell, so
re-importing a CSV export adds a duplicate of every multi-author record
instead of replacing it.

Examples:
  pubs export > pubs.json
  pubs export --format csv --project icecube -o icecube.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	pubs, err := a.svc.Fetch(ctx, exportCriteria, catalog.FetchOptions{})
	if err != nil {
		a.fail(err, "fetching publications")
	}

	var w io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			a.fail(err, "creating output file")
		}
		defer f.Close()
		w = f
	}

	if err := export.Write(w, exportFormat, pubs); err != nil {
		a.fail(err, "exporting")
	}
	if exportOutput != "" && humanOutput {
		fmt.Printf("Exported %d publications to %s\n", len(pubs), exportOutput)
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/catalog"
	"github.com/wipacrepo/pubs/internal/query"
)

var (
	listCriteria query.Criteria
	listPage     int
	listPageSize int
	listIDs      bool
	listOptions  bool
)

func init() {
	addCriteriaFlags(listCmd, &listCriteria)
	listCmd.Flags().IntVar(&listPage, "page", 0, "Zero-based page number (with --page-size)")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "Records per page (0 = all)")
	listCmd.Flags().BoolVar(&listIDs, "ids", false, "Include record identifiers")
	listCmd.Flags().BoolVar(&listOptions, "options", false, "Include filter form options in JSON output")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List publications matching filters",
	Long: `List publications matching filters, newest first.

Examples:
  pubs list --project icecube --start 2020-01-01
  pubs list --type journal --type proceeding --search '"dark matter" -annual'
  pubs list --page 2 --page-size 20 --ids`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// ListResponse is the JSON output of list.
type ListResponse struct {
	*catalog.Listing
	Options *query.FormOptions `json:"options,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	listing, err := a.svc.List(ctx, listCriteria, catalog.FetchOptions{
		IncludeID: listIDs,
		Page:      listPage,
		PageSize:  listPageSize,
	})
	if err != nil {
		a.fail(err, "listing publications")
	}

	if humanOutput {
		if len(listing.Publications) == 0 {
			fmt.Println("No publications match")
			return nil
		}
		if int64(len(listing.Publications)) < listing.Total {
			fmt.Printf("%d publications (showing %d):\n\n", listing.Total, len(listing.Publications))
		} else {
			fmt.Printf("%d publications:\n\n", listing.Total)
		}
		for _, p := range listing.Publications {
			printPublicationHuman(p)
		}
		return nil
	}

	resp := ListResponse{Listing: listing}
	if listOptions {
		opts := a.svc.Options(listing.Criteria)
		resp.Options = &opts
	}
	return outputJSON(resp)
}

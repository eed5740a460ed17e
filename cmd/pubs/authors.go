package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	authorsSuggest string
	authorsLimit   int
)

func init() {
	authorsCmd.Flags().StringVar(&authorsSuggest, "suggest", "", `Only authors matching a partial name ("Halz", "Halzen, F")`)
	authorsCmd.Flags().IntVar(&authorsLimit, "limit", 0, "Maximum suggestions (0 = all)")
	rootCmd.AddCommand(authorsCmd)
}

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "List distinct author names",
	Long: `List every distinct author name in the catalog, sorted.

Examples:
  pubs authors
  pubs authors --suggest halz --limit 10`,
	Args: cobra.NoArgs,
	RunE: runAuthors,
}

func runAuthors(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	var (
		names []string
		err   error
	)
	if cmd.Flags().Changed("suggest") || authorsLimit > 0 {
		names, err = a.svc.SuggestAuthors(ctx, authorsSuggest, authorsLimit)
	} else {
		names, err = a.svc.DistinctAuthors(ctx)
	}
	if err != nil {
		a.fail(err, "listing authors")
	}
	if names == nil {
		names = []string{}
	}

	if humanOutput {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}
	return outputJSON(names)
}

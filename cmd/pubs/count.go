package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/query"
)

var countCriteria query.Criteria

func init() {
	addCriteriaFlags(countCmd, &countCriteria)
	rootCmd.AddCommand(countCmd)
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count publications matching filters",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

// CountResponse is the JSON output of count.
type CountResponse struct {
	Count int64 `json:"count"`
}

func runCount(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	n, err := a.svc.Count(ctx, countCriteria)
	if err != nil {
		a.fail(err, "counting publications")
	}
	if humanOutput {
		fmt.Printf("%d publications\n", n)
		return nil
	}
	return outputJSON(CountResponse{Count: n})
}

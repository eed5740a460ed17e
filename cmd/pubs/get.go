package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one publication",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	p, err := a.svc.Get(ctx, args[0])
	if err != nil {
		a.fail(err, "getting %s", args[0])
	}
	if humanOutput {
		printPublicationHuman(*p)
		return nil
	}
	return outputJSON(p)
}

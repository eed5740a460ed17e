package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a publication",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	if err := a.svc.Delete(ctx, args[0]); err != nil {
		a.fail(err, "deleting %s", args[0])
	}
	if humanOutput {
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	}
	return outputJSON(StatusResponse{Status: "deleted", ID: args[0]})
}

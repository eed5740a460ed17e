package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var editFields pubFlags

func init() {
	editFields.register(editCmd)
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a publication",
	Long: `Change only the fields given as flags. Other fields keep their values.

Examples:
  pubs edit 65a1f0c2e4b0a1b2c3d4e5f6 --citation "Science 342 (2013) 1242856"
  pubs edit 65a1f0c2e4b0a1b2c3d4e5f6 --project icecube --project hawc
  pubs edit 65a1f0c2e4b0a1b2c3d4e5f6 --site=""   # clear sites`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	patch := editFields.patch(cmd)
	if err := a.svc.Update(ctx, args[0], patch); err != nil {
		a.fail(err, "editing %s", args[0])
	}
	if humanOutput {
		fmt.Printf("Updated %s (%d fields)\n", args[0], len(patch.Fields()))
		return nil
	}
	return outputJSON(StatusResponse{Status: "updated", ID: args[0]})
}

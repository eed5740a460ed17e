package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addFields pubFlags

func init() {
	addFields.register(addCmd)
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a publication",
	Long: `Add a single publication after validating every field.

Example:
  pubs add --title "Evidence for High-Energy Extraterrestrial Neutrinos" \
    --author "Aartsen, M. G." --type journal --citation "Science 342 (2013)" \
    --date 2013-11-22 --project icecube --site icecube \
    --download https://arxiv.org/abs/1311.5238`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, ctx, cancel := mustOpenApp(cmd.Context())
	defer cancel()
	defer a.close()

	id, err := a.svc.Insert(ctx, addFields.publication())
	if err != nil {
		a.fail(err, "adding publication")
	}
	if humanOutput {
		fmt.Printf("Added %s\n", id)
		return nil
	}
	return outputJSON(StatusResponse{Status: "added", ID: id})
}

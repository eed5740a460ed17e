package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wipacrepo/pubs/internal/taxonomy"
)

func init() {
	rootCmd.AddCommand(taxonomyCmd)
}

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Show the publication types, projects and sites",
	Long: `Show the registry records are validated against. Set TAXONOMY_FILE to a
YAML file with types, projects and sites lists to override the built-in one.`,
	Args: cobra.NoArgs,
	RunE: runTaxonomy,
}

// TaxonomyResponse is the JSON output of taxonomy.
type TaxonomyResponse struct {
	Types    []taxonomy.Entry `json:"types"`
	Projects []taxonomy.Entry `json:"projects"`
	Sites    []taxonomy.Entry `json:"sites"`
}

func runTaxonomy(cmd *cobra.Command, args []string) error {
	cfg, _ := mustLoadConfig()
	reg := mustLoadRegistry(cfg)

	resp := TaxonomyResponse{
		Types:    reg.Types().Entries(),
		Projects: reg.Projects().Entries(),
		Sites:    reg.Sites().Entries(),
	}
	if humanOutput {
		printEntries("Types", resp.Types)
		printEntries("Projects", resp.Projects)
		printEntries("Sites", resp.Sites)
		return nil
	}
	return outputJSON(resp)
}

func printEntries(heading string, entries []taxonomy.Entry) {
	fmt.Printf("%s:\n", heading)
	for _, e := range entries {
		fmt.Printf("  %-12s %s\n", e.Key, e.Label)
	}
	fmt.Println()
}

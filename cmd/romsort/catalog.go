package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/platformcatalog"
)

var catalogCommand = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate the platform catalog",
}

var catalogValidateCommand = &cobra.Command{
	Use:   "validate <catalog-path>",
	Short: "Load and validate a platform catalog file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	catalogCommand.AddCommand(catalogValidateCommand)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	catalog, reason, err := platformcatalog.Load(args[0])
	if err != nil {
		return fmt.Errorf("%s: %w", reason, err)
	}
	fmt.Printf("%s %d platform(s), policy {min_score_delta=%.2f min_top_score=%.2f contradiction_min_score=%.2f}\n",
		color.GreenString("valid:"), len(catalog.Platforms),
		catalog.Policy.MinScoreDelta, catalog.Policy.MinTopScore, catalog.Policy.ContradictionMinScore)
	for _, p := range catalog.Platforms {
		fmt.Printf("  %-12s %s\n", p.PlatformID, p.CanonicalName)
	}
	return nil
}

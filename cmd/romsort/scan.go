package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/scanner"
)

var scanConfiguration struct {
	indexPath     string
	catalogPath   string
	overridesPath string
	outputPath    string
	lazyArchives  bool
	threads       int
}

var scanCommand = &cobra.Command{
	Use:   "scan <root>",
	Short: "Walk a directory and identify every ROM file it contains",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	flags := scanCommand.Flags()
	flags.StringVar(&scanConfiguration.indexPath, "index", "", "path to the DAT index database (omit to skip DAT lookup)")
	flags.StringVar(&scanConfiguration.catalogPath, "catalog", "", "path to the platform catalog file")
	flags.StringVar(&scanConfiguration.overridesPath, "overrides", "", "path to an identification overrides file")
	flags.StringVarP(&scanConfiguration.outputPath, "output", "o", "scan-result.json", "where to write the scan result")
	flags.BoolVar(&scanConfiguration.lazyArchives, "lazy-archives", false, "don't open zip archives, just flag them")
	flags.IntVar(&scanConfiguration.threads, "threads", 0, "worker count (0 = min(32, max(4, 2*ncpu)))")
}

func runScan(cmd *cobra.Command, args []string) error {
	root := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	catalog, err := loadCatalogFromConfig(cfg, scanConfiguration.catalogPath)
	if err != nil {
		return err
	}

	rules, err := loadOverridesFromConfig(cfg, scanConfiguration.overridesPath)
	if err != nil {
		return err
	}

	var lookup scanner.DatLookup
	if scanConfiguration.indexPath != "" {
		idx, closeIdx, err := openIndexFromConfig(withIndexPath(cfg, scanConfiguration.indexPath))
		if err != nil {
			return err
		}
		defer closeIdx()
		lookup = idx
	}

	token := cancelctl.New()
	setupInterruptHandler(token)

	s := scanner.New(scanner.Options{
		Config:       &cfg.Scanner,
		Catalog:      catalog,
		Index:        lookup,
		Overrides:    rules,
		LazyArchives: scanConfiguration.lazyArchives,
		Threads:      scanConfiguration.threads,
		OnProgress:   printScanProgress,
	})

	result, err := s.Scan(root, token)
	if err != nil {
		return err
	}
	fmt.Println()

	if err := writeJSONFile(scanConfiguration.outputPath, result); err != nil {
		return err
	}

	confident, unknown := 0, 0
	for _, item := range result.Items {
		if item.Confident(cfg.Features.Sorting.ConfidenceThreshold) {
			confident++
		} else {
			unknown++
		}
	}
	fmt.Printf("%s %s items (%s confident, %s unknown, %s walk errors) -> %s\n",
		color.GreenString("scan complete:"),
		humanize.Comma(int64(len(result.Items))),
		humanize.Comma(int64(confident)),
		humanize.Comma(int64(unknown)),
		humanize.Comma(int64(result.WalkErrors)),
		scanConfiguration.outputPath)
	return nil
}

func printScanProgress(done, total int) {
	fmt.Printf("\rscanning %s/%s", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
}

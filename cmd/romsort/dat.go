package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/datindex"
)

var datImportConfiguration struct {
	indexPath string
	lockPath  string
	shards    int
}

var datCommand = &cobra.Command{
	Use:   "dat",
	Short: "Manage the DAT index",
}

var datImportCommand = &cobra.Command{
	Use:   "import <dat-dir-or-file>...",
	Short: "Incrementally ingest DAT files into the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDatImport,
}

func init() {
	flags := datImportCommand.Flags()
	flags.StringVar(&datImportConfiguration.indexPath, "index", "romsort-index.db", "path to the DAT index database")
	flags.StringVar(&datImportConfiguration.lockPath, "lock", "", "path to the writer lock file (default: <index>.lock)")
	flags.IntVar(&datImportConfiguration.shards, "shards", 1, "number of sharded index files to spread ingest across")

	datCoverageCommand.Flags().StringVar(&datImportConfiguration.indexPath, "index", "romsort-index.db", "path to the DAT index database")

	datCommand.AddCommand(datImportCommand, datCoverageCommand)
}

func runDatImport(cmd *cobra.Command, args []string) error {
	lockPath := datImportConfiguration.lockPath
	if lockPath == "" {
		lockPath = datImportConfiguration.indexPath + ".lock"
	}

	token := cancelctl.New()
	setupInterruptHandler(token)

	if datImportConfiguration.shards > 1 {
		sharded, err := datindex.OpenSharded(datImportConfiguration.indexPath, datImportConfiguration.shards)
		if err != nil {
			return err
		}
		defer sharded.Close()

		statsPerShard, err := sharded.Ingest(args, token)
		if err != nil {
			return err
		}
		for i, stats := range statsPerShard {
			printIngestStats(fmt.Sprintf("shard %d", i), stats)
		}
		return nil
	}

	idx, err := datindex.OpenForWrite(datImportConfiguration.indexPath, lockPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	stats, err := idx.Ingest(args, token)
	if err != nil {
		return err
	}
	printIngestStats(datImportConfiguration.indexPath, stats)
	return nil
}

func printIngestStats(label string, stats datindex.IngestStats) {
	fmt.Printf("%s %s\n", color.GreenString("✓"), label)
	fmt.Printf("  scanned: %s, updated: %s, skipped: %s, removed: %s\n",
		humanize.Comma(int64(stats.Scanned)),
		humanize.Comma(int64(stats.Updated)),
		humanize.Comma(int64(stats.Skipped)),
		humanize.Comma(int64(stats.Removed)))
}

var datCoverageCommand = &cobra.Command{
	Use:   "coverage",
	Short: "Report per-platform ROM counts and orphaned rows in the index",
	Args:  cobra.NoArgs,
	RunE:  runDatCoverage,
}

func runDatCoverage(cmd *cobra.Command, args []string) error {
	idx, err := datindex.Open(datImportConfiguration.indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	report, err := idx.Coverage()
	if err != nil {
		return err
	}

	fmt.Printf("Active DAT files: %s\n", humanize.Comma(int64(len(report.ActiveDatFiles))))
	for _, p := range report.Platforms {
		fmt.Printf("  %-12s %s roms\n", p.PlatformID, humanize.Comma(int64(p.RomCount)))
	}
	if report.OrphanedRows > 0 {
		fmt.Println(color.YellowString("orphaned rows: %s", humanize.Comma(int64(report.OrphanedRows))))
	}
	return nil
}

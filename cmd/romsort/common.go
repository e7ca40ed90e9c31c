package main

import (
	"encoding/json"
	"os"
	"os/signal"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/overrides"
	"github.com/retronian/romsorter/internal/platformcatalog"
	"github.com/retronian/romsorter/internal/scanner"
)

// setupInterruptHandler fires token when the process receives SIGINT, so
// a long-running ingest/scan/execute can stop at its next suspension
// point instead of being killed mid-write.
func setupInterruptHandler(token *cancelctl.Token) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		token.Cancel()
	}()
}

func loadConfig() (*config.Config, error) {
	if rootConfiguration.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(rootConfiguration.configPath)
}

func loadCatalogFromConfig(cfg *config.Config, override string) (*platformcatalog.Catalog, error) {
	path := platformcatalog.ResolvePath(platformcatalog.EnvOverrideVar, cfg.PlatformCatalogPath, "platforms.yaml")
	if override != "" {
		path = override
	}
	catalog, _, err := platformcatalog.Load(path)
	return catalog, err
}

func loadOverridesFromConfig(cfg *config.Config, override string) ([]overrides.Rule, error) {
	path := override
	if path == "" {
		if !cfg.IdentificationOverrides.Enabled {
			return nil, nil
		}
		path = cfg.IdentificationOverrides.Path
	}
	if path == "" {
		return nil, nil
	}
	return overrides.Load(path)
}

// datIndex is the full surface common.go's opener hands back: enough for
// the scanner's lookups and enough for the server's coverage endpoint,
// whether the index is a single file or sharded.
type datIndex interface {
	scanner.DatLookup
	Coverage() (datindex.CoverageReport, error)
	Close() error
}

// openIndexFromConfig opens the DAT index for read-only lookups, sharded
// if the config requests it.
func openIndexFromConfig(cfg *config.Config) (datIndex, func() error, error) {
	if cfg.Dats.Sharding.Enabled && cfg.Dats.Sharding.Shards > 1 {
		idx, err := datindex.OpenSharded(cfg.Dats.IndexPath, cfg.Dats.Sharding.Shards)
		if err != nil {
			return nil, nil, err
		}
		return idx, idx.Close, nil
	}
	idx, err := datindex.Open(cfg.Dats.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	return idx, idx.Close, nil
}

// withIndexPath returns a shallow copy of cfg with Dats.IndexPath
// overridden, so a CLI flag can point at an index without mutating the
// loaded config in place.
func withIndexPath(cfg *config.Config, path string) *config.Config {
	clone := *cfg
	clone.Dats.IndexPath = path
	return &clone
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readScanResultFile(path string) (model.ScanResult, error) {
	var result model.ScanResult
	data, err := os.ReadFile(path)
	if err != nil {
		return result, err
	}
	err = json.Unmarshal(data, &result)
	return result, err
}

func readSortPlanFile(path string) (model.SortPlan, error) {
	var plan model.SortPlan
	data, err := os.ReadFile(path)
	if err != nil {
		return plan, err
	}
	err = json.Unmarshal(data, &plan)
	return plan, err
}

// Package config defines the configuration keys the core consumes: a
// schema plus a thin YAML loader for callers -- the CLI, or a future GUI --
// that want one.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ScannerConfig struct {
	MaxThreads        int      `yaml:"max_threads"`
	ChunkSize         int      `yaml:"chunk_size"`
	IgnoreImages      bool     `yaml:"ignore_images"`
	IgnoreExtensions  []string `yaml:"ignore_extensions"`
	FollowSymlinks    bool     `yaml:"follow_symlinks"`
}

type OptimizationConfig struct {
	EnableProgressBatching bool `yaml:"enable_progress_batching"`
	LazyArchiveExtraction  bool `yaml:"lazy_archive_extraction"`
}

type ProcessingConfig struct {
	IOBufferSize int `yaml:"io_buffer_size"`
}

type PerformanceConfig struct {
	Optimization OptimizationConfig `yaml:"optimization"`
	Processing   ProcessingConfig   `yaml:"processing"`
}

type ConversionRule struct {
	Extensions      []string `yaml:"extensions"`
	Systems         []string `yaml:"systems"`
	ToolKey         string   `yaml:"tool_key"`
	ToolPath        string   `yaml:"tool_path"`
	Args            []string `yaml:"args"`
	OutputExtension string   `yaml:"output_extension"`
}

type ConversionConfig struct {
	Enabled               bool             `yaml:"enabled"`
	FallbackOnMissingTool bool             `yaml:"fallback_on_missing_tool"`
	Rules                 []ConversionRule `yaml:"rules"`
}

type SortingConfig struct {
	CreateConsoleFolders     bool             `yaml:"create_console_folders"`
	ConfidenceThreshold      float64          `yaml:"confidence_threshold"`
	CreateUnknownFolder      bool             `yaml:"create_unknown_folder"`
	UnknownFolderName        string           `yaml:"unknown_folder_name"`
	QuarantineUnknown        bool             `yaml:"quarantine_unknown"`
	QuarantineFolderName     string           `yaml:"quarantine_folder_name"`
	RegionBasedSorting       bool             `yaml:"region_based_sorting"`
	PreserveFolderStructure  bool             `yaml:"preserve_folder_structure"`
	RenameTemplate           string           `yaml:"rename_template"`
	Conversion               ConversionConfig `yaml:"conversion"`
}

type FeaturesConfig struct {
	Sorting SortingConfig `yaml:"sorting"`
	Backup  BackupConfig  `yaml:"backup"`
}

type BackupConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BeforeOverwrite bool   `yaml:"before_overwrite"`
	LocalDir        string `yaml:"local_dir"`
}

type ShardingConfig struct {
	Enabled     bool `yaml:"enabled"`
	Shards      int  `yaml:"shards"`
}

type DatsConfig struct {
	ImportPaths []string       `yaml:"import_paths"`
	IndexPath   string         `yaml:"index_path"`
	LockPath    string         `yaml:"lock_path"`
	Sharding    ShardingConfig `yaml:"sharding"`
}

type IdentificationOverridesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the full set of settings the core consumes. Every field
// defaults to a sensible value when loaded from an incomplete YAML
// document.
type Config struct {
	Scanner                   ScannerConfig                 `yaml:"scanner"`
	Performance               PerformanceConfig             `yaml:"performance"`
	Features                  FeaturesConfig                `yaml:"features"`
	Dats                      DatsConfig                    `yaml:"dats"`
	IdentificationOverrides   IdentificationOverridesConfig `yaml:"identification_overrides"`
	PlatformCatalogPath       string                        `yaml:"platform_catalog_path"`
}

// Default returns the baseline configuration: a confidence threshold of
// 0.95, a 1 MiB hash chunk (via hashutil's own default, left at zero
// here), and min(32, max(4, 2*ncpu)) threads computed by the caller since
// config itself doesn't know runtime.NumCPU.
func Default() *Config {
	return &Config{
		Features: FeaturesConfig{
			Sorting: SortingConfig{
				CreateConsoleFolders: true,
				ConfidenceThreshold:  0.95,
				UnknownFolderName:    "Unknown",
				QuarantineFolderName: "Quarantine",
			},
		},
	}
}

// Load reads a YAML config file, starting from Default() so unset keys
// keep their spec-stated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config YAML")
	}
	return cfg, nil
}

// Package platformcatalog implements loading and validating the platform
// catalog (YAML preferred, JSON fallback), cached by (path, mtime).
package platformcatalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/retronian/romsorter/internal/model"
)

// Policy is the flat map of three reals the heuristic evaluator (§4.F)
// consults.
type Policy struct {
	MinScoreDelta          float64 `yaml:"min_score_delta" json:"min_score_delta"`
	MinTopScore            float64 `yaml:"min_top_score" json:"min_top_score"`
	ContradictionMinScore  float64 `yaml:"contradiction_min_score" json:"contradiction_min_score"`
}

// DefaultPolicy is used when a catalog omits the optional policy block.
var DefaultPolicy = Policy{
	MinScoreDelta:         1.0,
	MinTopScore:           2.0,
	ContradictionMinScore: 3.0,
}

// Platform is one catalog entry (§3 PlatformCatalog).
type Platform struct {
	PlatformID         string   `yaml:"platform_id" json:"platform_id"`
	CanonicalName      string   `yaml:"canonical_name" json:"canonical_name"`
	Aliases            []string `yaml:"aliases" json:"aliases"`
	Category           string   `yaml:"category" json:"category"`
	MediaTypes         []string `yaml:"media_types" json:"media_types"`
	AllowedContainers  []string `yaml:"allowed_containers" json:"allowed_containers"`
	TypicalExtensions  []string `yaml:"typical_extensions" json:"typical_extensions"`
	PositiveTokens     []string `yaml:"positive_tokens" json:"positive_tokens"`
	NegativeTokens     []string `yaml:"negative_tokens" json:"negative_tokens"`
	ConflictGroups     []string `yaml:"conflict_groups" json:"conflict_groups"`
	MinimumSignals     []string `yaml:"minimum_signals" json:"minimum_signals"`
}

type document struct {
	Version   string      `yaml:"version" json:"version"`
	Policy    *Policy     `yaml:"policy" json:"policy"`
	Platforms []Platform  `yaml:"platforms" json:"platforms"`
}

// Catalog is the loaded, validated platform catalog.
type Catalog struct {
	Version   string
	Policy    Policy
	Platforms []Platform
}

// PlatformByID returns the catalog entry for id, or false if absent.
func (c *Catalog) PlatformByID(id string) (Platform, bool) {
	for _, p := range c.Platforms {
		if p.PlatformID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// Reason is the attribution string §4.E requires so the scanner can blame
// confusion on configuration problems rather than the file itself.
type Reason string

const (
	ReasonOK              Reason = "ok"
	ReasonCatalogMissing  Reason = "catalog_missing"
	ReasonCatalogInvalid  Reason = "catalog_invalid"
	ReasonCatalogEmpty    Reason = "catalog_empty"
	ReasonNoMatch         Reason = "no_match"
)

var requiredFields = []string{
	"platform_id", "canonical_name", "category",
}

func validate(doc *document) (*Catalog, Reason, error) {
	if doc == nil || len(doc.Platforms) == 0 {
		return nil, ReasonCatalogEmpty, model.NewError(model.KindCatalogEmpty, "", errors.New("catalog has no platforms"))
	}
	for i, p := range doc.Platforms {
		if p.PlatformID == "" {
			return nil, ReasonCatalogInvalid, model.NewError(model.KindCatalogInvalid, "", errors.Errorf("platform[%d]: missing platform_id", i))
		}
		if p.CanonicalName == "" {
			return nil, ReasonCatalogInvalid, model.NewError(model.KindCatalogInvalid, "", errors.Errorf("platform %s: missing canonical_name", p.PlatformID))
		}
		if p.Category == "" {
			return nil, ReasonCatalogInvalid, model.NewError(model.KindCatalogInvalid, "", errors.Errorf("platform %s: missing category", p.PlatformID))
		}
	}
	policy := DefaultPolicy
	if doc.Policy != nil {
		policy = *doc.Policy
	}
	return &Catalog{Version: doc.Version, Policy: policy, Platforms: doc.Platforms}, ReasonOK, nil
}

type cacheEntry struct {
	mtime   int64
	catalog *Catalog
}

var (
	cacheMu sync.Mutex
	cache   = map[string]cacheEntry{}
)

// Load reads and validates the catalog at path (YAML or JSON, sniffed by
// extension, falling back to YAML parse-then-JSON-parse for extensionless
// paths), caching the parsed form keyed by (path, mtime).
func Load(path string) (*Catalog, Reason, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, ReasonCatalogMissing, model.NewError(model.KindCatalogMissing, path, errors.Wrap(err, "stat catalog"))
	}

	cacheMu.Lock()
	if entry, ok := cache[path]; ok && entry.mtime == info.ModTime().UnixNano() {
		cacheMu.Unlock()
		return entry.catalog, ReasonOK, nil
	}
	cacheMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ReasonCatalogMissing, model.NewError(model.KindCatalogMissing, path, errors.Wrap(err, "read catalog"))
	}

	var doc document
	var parseErr error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		parseErr = json.Unmarshal(data, &doc)
	} else {
		parseErr = yaml.Unmarshal(data, &doc)
		if parseErr != nil {
			// Fall back to JSON in case the extension lied.
			if jsonErr := json.Unmarshal(data, &doc); jsonErr == nil {
				parseErr = nil
			}
		}
	}
	if parseErr != nil {
		return nil, ReasonCatalogInvalid, model.NewError(model.KindCatalogInvalid, path, errors.Wrap(parseErr, "parse catalog"))
	}

	catalog, reason, err := validate(&doc)
	if err != nil {
		return nil, reason, err
	}

	cacheMu.Lock()
	cache[path] = cacheEntry{mtime: info.ModTime().UnixNano(), catalog: catalog}
	cacheMu.Unlock()

	return catalog, ReasonOK, nil
}

// ResolvePath implements the §6 resolution order: env override, then the
// config-supplied path, then a bundled default.
func ResolvePath(envVar, configPath, bundledDefault string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	if configPath != "" {
		return configPath
	}
	return bundledDefault
}

// EnvOverrideVar is the environment variable that overrides the
// configured platform catalog path.
const EnvOverrideVar = "ROM_SORTER_PLATFORM_CATALOG"

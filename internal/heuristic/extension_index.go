package heuristic

import (
	"strings"
	"sync"

	"github.com/retronian/romsorter/internal/platformcatalog"
)

// ExtensionIndex answers "which single platform in the catalog owns this
// extension" in O(1), supporting the §4.G.5 "unique extension" branch.
type ExtensionIndex struct {
	owners map[string][]string // ext -> platform ids that claim it
}

var (
	indexCacheMu sync.Mutex
	indexCache   = map[*platformcatalog.Catalog]*ExtensionIndex{}
)

// BuildExtensionIndex builds (and memoizes, per catalog pointer) the
// extension ownership index.
func BuildExtensionIndex(catalog *platformcatalog.Catalog) *ExtensionIndex {
	indexCacheMu.Lock()
	defer indexCacheMu.Unlock()
	if idx, ok := indexCache[catalog]; ok {
		return idx
	}

	idx := &ExtensionIndex{owners: map[string][]string{}}
	for _, p := range catalog.Platforms {
		for _, ext := range p.TypicalExtensions {
			key := strings.ToLower(ext)
			idx.owners[key] = append(idx.owners[key], p.PlatformID)
		}
	}
	indexCache[catalog] = idx
	return idx
}

// UniqueOwner returns the sole platform id claiming ext as typical, or
// ("", false) when zero or more than one platform claims it.
func (idx *ExtensionIndex) UniqueOwner(ext string) (string, bool) {
	owners := idx.owners[strings.ToLower(ext)]
	if len(owners) == 1 {
		return owners[0], true
	}
	return "", false
}

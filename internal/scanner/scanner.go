// Package scanner implements the tree walk plus per-file identification
// pipeline that turns a source directory into a model.ScanResult.
package scanner

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/heuristic"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/overrides"
	"github.com/retronian/romsorter/internal/pathsafety"
	"github.com/retronian/romsorter/internal/platformcatalog"
)

// DatLookup is the subset of *datindex.Index (and *datindex.ShardedIndex)
// the scanner needs, so it doesn't care whether the index is sharded.
type DatLookup interface {
	Lookup(sha1, crc32 string, size int64, gameName string) (datindex.LookupResult, error)
}

// ProgressFunc is called with (done, total) throttled to avoid flooding a
// caller on a large tree; the final call always carries done == total.
type ProgressFunc func(done, total int)

// Options configures one Scan call.
type Options struct {
	Config        *config.ScannerConfig
	Catalog       *platformcatalog.Catalog
	Index         DatLookup // nil is permitted: DAT lookup is then always a miss
	Overrides     []overrides.Rule
	Policy              platformcatalog.Policy
	ConfidenceThreshold float64 // 0 means the default of 0.95
	LazyArchives        bool
	Threads             int // 0 means min(32, max(4, 2*ncpu))
	OnProgress          ProgressFunc
}

// Scanner walks a source tree and identifies every ROM file it contains.
// Its in-session cache is cleared when the Scanner is dropped.
type Scanner struct {
	opts  Options
	extIx *heuristic.ExtensionIndex

	cacheMu sync.Mutex
	cache   map[cacheKey]model.ScanItem
}

type cacheKey struct {
	path  string
	mtime int64
	size  int64
}

// New builds a Scanner bound to the given catalog and DAT index.
func New(opts Options) *Scanner {
	if opts.Threads <= 0 {
		opts.Threads = defaultThreadCount()
	}
	var extIx *heuristic.ExtensionIndex
	if opts.Catalog != nil {
		extIx = heuristic.BuildExtensionIndex(opts.Catalog)
		if opts.Policy == (platformcatalog.Policy{}) {
			opts.Policy = opts.Catalog.Policy
		}
	}
	return &Scanner{
		opts:  opts,
		extIx: extIx,
		cache: map[cacheKey]model.ScanItem{},
	}
}

func defaultThreadCount() int {
	n := 2 * runtime.NumCPU()
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}

// Scan walks root (after path-safety validation) and identifies every file,
// fanning work out across a thread pool sized per Options.Threads.
func (s *Scanner) Scan(root string, token *cancelctl.Token) (model.ScanResult, error) {
	if _, err := pathsafety.Validate(root, "", pathsafety.ModeRead); err != nil {
		return model.ScanResult{}, err
	}
	paths, walkErrors, err := walkTree(root, s.opts.Config)
	if err != nil {
		return model.ScanResult{}, err
	}

	total := len(paths)
	pt := newProgressTracker(total, s.opts.OnProgress)

	results := make([]model.ScanItem, total)
	var identifyErrors int64
	jobs := make(chan int, s.opts.Threads)
	var wg sync.WaitGroup

	for w := 0; w < s.opts.Threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if token.Cancelled() {
					continue
				}
				item, err := s.identify(paths[i], token)
				if err != nil {
					glog.Errorf("scanner: failed to identify %s: %v", paths[i], err)
					atomic.AddInt64(&identifyErrors, 1)
					item = model.ScanItem{InputPath: paths[i], DetectedSystem: model.Unknown, DetectionSource: "error"}
				}
				results[i] = item
				pt.tick()
			}
		}()
	}

	for i := range paths {
		if token.Cancelled() {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	pt.finish()

	walkErrors += int(atomic.LoadInt64(&identifyErrors))

	final := make([]model.ScanItem, 0, total)
	for _, item := range results {
		if item.InputPath != "" {
			final = append(final, item)
		}
	}

	return model.ScanResult{Items: final, WalkErrors: walkErrors}, nil
}

// identify runs the per-file identification pipeline for a single path,
// consulting and populating the in-session cache.
func (s *Scanner) identify(path string, token *cancelctl.Token) (model.ScanItem, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.ScanItem{}, err
	}
	key := cacheKey{path: path, mtime: info.ModTime().UnixNano(), size: info.Size()}

	s.cacheMu.Lock()
	if item, ok := s.cache[key]; ok {
		s.cacheMu.Unlock()
		return item, nil
	}
	s.cacheMu.Unlock()

	var item model.ScanItem
	switch {
	case info.IsDir():
		item = model.ScanItem{
			InputPath:           path,
			DetectedSystem:      "PS3",
			DetectionSource:     "ps3-directory",
			DetectionConfidence: model.ExactConfidence,
			IsExact:             true,
		}
	case filepath.Ext(path) == ".zip":
		item, err = s.identifyZip(path, info, token)
	default:
		item, err = s.identifyFile(path, info, token)
	}
	if err != nil {
		return model.ScanItem{}, err
	}

	item = s.applyOverrides(item)

	s.cacheMu.Lock()
	s.cache[key] = item
	s.cacheMu.Unlock()
	return item, nil
}

// applyOverrides implements step 8: an override rule match wins
// unconditionally over whatever identification produced.
func (s *Scanner) applyOverrides(item model.ScanItem) model.ScanItem {
	rule, ok := overrides.FirstMatch(s.opts.Overrides, item.InputPath)
	if !ok {
		return item
	}
	item.DetectedSystem = rule.PlatformID
	item.IsExact = true
	item.DetectionSource = "override"
	item.DetectionConfidence = rule.EffectiveConfidence()
	item.Raw.Extra = mergeExtra(item.Raw.Extra, "OVERRIDE_RULE", rule.Name)
	return item
}

func mergeExtra(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = map[string]string{}
	}
	m[k] = v
	return m
}

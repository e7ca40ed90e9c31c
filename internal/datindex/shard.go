package datindex

import (
	"hash/fnv"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
)

// ShardedIndex fans a single logical DAT index out across N sibling SQLite
// files, routing each DAT source file (with all of its rows) by a stable
// hash of its path. Rows are not routed by rom key, so one shard holds
// every row of the DAT files assigned to it and lookups query all shards.
type ShardedIndex struct {
	shards []*Index
}

// OpenSharded opens (or creates) n shard databases named index-0.db .. index-(n-1).db
// under dir.
func OpenSharded(dir string, n int) (*ShardedIndex, error) {
	if n < 1 {
		return nil, errors.New("shard count must be >= 1")
	}
	shards := make([]*Index, 0, n)
	for i := 0; i < n; i++ {
		idx, err := Open(filepath.Join(dir, shardFileName(i)))
		if err != nil {
			for _, opened := range shards {
				opened.Close() //nolint:errcheck
			}
			return nil, errors.Wrapf(err, "open shard %d", i)
		}
		shards = append(shards, idx)
	}
	return &ShardedIndex{shards: shards}, nil
}

func shardFileName(i int) string {
	return "index-" + strconv.Itoa(i) + ".db"
}

// Close closes every shard, returning the first error encountered.
func (s *ShardedIndex) Close() error {
	var first error
	for _, idx := range s.shards {
		if err := idx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// shardFor returns the shard index owning key, using FNV-1a for a stable,
// well-distributed route independent of platform or Go version.
func (s *ShardedIndex) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck
	return int(h.Sum32() % uint32(len(s.shards)))
}

// IndexFor returns the shard a given SHA-1 (or, if empty, CRC32) key
// hashes to. Ingest and Lookup do not use this mapping: ingest places
// whole DAT files by source path, so a row with this key may be in any
// shard.
func (s *ShardedIndex) IndexFor(sha1, crc32 string) *Index {
	key := sha1
	if key == "" {
		key = crc32
	}
	return s.shards[s.shardFor(key)]
}

// Ingest routes each DAT file to the shard selected by the DAT's source
// path, so re-running ingest is idempotent per shard, then runs the
// per-shard ingest concurrently.
func (s *ShardedIndex) Ingest(importPaths []string, token *cancelctl.Token) ([]IngestStats, error) {
	files, err := collectDatCandidates(importPaths)
	if err != nil {
		return nil, errors.Wrap(err, "collect DAT candidates")
	}
	buckets := make([][]string, len(s.shards))
	for _, p := range files {
		i := s.shardFor(p)
		buckets[i] = append(buckets[i], p)
	}

	stats := make([]IngestStats, len(s.shards))
	errs := make([]error, len(s.shards))
	var wg sync.WaitGroup
	for i := range s.shards {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats[i], errs[i] = s.shards[i].Ingest(buckets[i], token)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Lookup fans a single content-addressed lookup out to every shard in
// parallel and merges the outcome, since a given hash could in principle
// have been ingested into any shard depending on which DAT it came from
// (shards route by DAT source path, not by rom key).
func (s *ShardedIndex) Lookup(sha1, crc32 string, size int64, gameName string) (LookupResult, error) {
	results := make([]LookupResult, len(s.shards))
	errs := make([]error, len(s.shards))
	var wg sync.WaitGroup
	for i, idx := range s.shards {
		i, idx := i, idx
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = idx.Lookup(sha1, crc32, size, gameName)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return LookupResult{}, err
		}
	}

	var all []Match
	for _, r := range results {
		all = append(all, r.Matches...)
	}
	return singleOrCrossCheck(all), nil
}

// Coverage merges every shard's CoverageReport into one: active DAT files
// and per-platform rom counts are unioned/summed, since a platform can
// have rows spread across shards.
func (s *ShardedIndex) Coverage() (CoverageReport, error) {
	var merged CoverageReport
	platformTotals := map[string]int{}

	for _, idx := range s.shards {
		report, err := idx.Coverage()
		if err != nil {
			return CoverageReport{}, err
		}
		merged.ActiveDatFiles = append(merged.ActiveDatFiles, report.ActiveDatFiles...)
		merged.OrphanedRows += report.OrphanedRows
		for _, pc := range report.Platforms {
			platformTotals[pc.PlatformID] += pc.RomCount
		}
	}

	for platformID, count := range platformTotals {
		merged.Platforms = append(merged.Platforms, PlatformCoverage{PlatformID: platformID, RomCount: count})
	}
	sort.Slice(merged.Platforms, func(i, j int) bool { return merged.Platforms[i].PlatformID < merged.Platforms[j].PlatformID })
	return merged, nil
}

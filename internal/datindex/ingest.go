package datindex

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/dat"
	"github.com/retronian/romsorter/internal/model"
)

const ingestBatchSize = 10000

// IngestStats reports the outcome of one Ingest call: how many DAT files
// were scanned, skipped as unchanged, upserted, or removed.
type IngestStats struct {
	Scanned int
	Skipped int
	Updated int
	Removed int
}

// Ingest runs the incremental ingest algorithm: purge rows for DAT files
// that disappeared, skip unchanged files, and reparse-and-upsert
// everything else.
func (idx *Index) Ingest(importPaths []string, token *cancelctl.Token) (IngestStats, error) {
	var stats IngestStats

	present, err := collectDatCandidates(importPaths)
	if err != nil {
		return stats, errors.Wrap(err, "collect DAT candidates")
	}
	presentSet := map[string]bool{}
	for _, p := range present {
		presentSet[p] = true
	}

	if err := idx.purgeAbsent(presentSet, &stats); err != nil {
		return stats, errors.Wrap(err, "purge absent DAT files")
	}

	for _, path := range present {
		if token.Cancelled() {
			return stats, model.NewError(model.KindCancelled, "", errors.New("ingest cancelled"))
		}
		stats.Scanned++
		changed, err := idx.ingestOne(path, token)
		if err != nil {
			glog.Errorf("datindex: failed to ingest %s, skipping: %v", path, err)
			continue
		}
		if changed {
			stats.Updated++
		} else {
			stats.Skipped++
		}
	}

	return stats, nil
}

func collectDatCandidates(importPaths []string) ([]string, error) {
	var out []string
	for _, root := range importPaths {
		err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return nil //nolint:nilerr // best-effort walk, errors logged by caller
			}
			if info.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(p))
			if ext == ".dat" || ext == ".xml" || ext == ".zip" {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (idx *Index) purgeAbsent(present map[string]bool, stats *IngestStats) error {
	rows, err := idx.db.Query(`SELECT id, source_path FROM dat_files WHERE active = 1`)
	if err != nil {
		return err
	}
	type row struct {
		id   int64
		path string
	}
	var toPurge []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.path); err != nil {
			rows.Close()
			return err
		}
		if !present[r.path] {
			toPurge = append(toPurge, r)
		}
	}
	rows.Close()

	for _, r := range toPurge {
		tx, err := idx.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM rom_hashes WHERE dat_id = ?`, r.id); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`DELETE FROM game_names WHERE dat_id = ?`, r.id); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`UPDATE dat_files SET active = 0 WHERE id = ?`, r.id); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		stats.Removed++
	}
	return nil
}

// ingestOne upserts/reparses a single DAT source file, returning true if
// it was changed (and thus reparsed) or false if it was unchanged and
// skipped.
func (idx *Index) ingestOne(path string, token *cancelctl.Token) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, errors.Wrap(err, "stat")
	}
	mtime := info.ModTime().UnixNano()
	size := info.Size()

	var datID int64
	var existingMtime, existingSize int64
	err = idx.db.QueryRow(`SELECT id, mtime, size_bytes FROM dat_files WHERE source_path = ?`, path).
		Scan(&datID, &existingMtime, &existingSize)

	switch {
	case err == nil:
		if existingMtime == mtime && existingSize == size {
			// Reactivate in case a prior run marked it inactive.
			idx.db.Exec(`UPDATE dat_files SET active = 1 WHERE id = ?`, datID) //nolint:errcheck
			return false, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		// new file, fall through to insert below
	default:
		return false, err
	}

	result, err := dat.ParseFile(path, "")
	if err != nil {
		return false, err
	}

	if datID == 0 {
		res, err := idx.db.Exec(`INSERT INTO dat_files (source_path, mtime, size_bytes, active) VALUES (?, ?, ?, 1)`, path, mtime, size)
		if err != nil {
			return false, err
		}
		datID, _ = res.LastInsertId()
	} else {
		if _, err := idx.db.Exec(`UPDATE dat_files SET mtime = ?, size_bytes = ?, active = 1 WHERE id = ?`, mtime, size, datID); err != nil {
			return false, err
		}
	}

	if err := idx.reparse(datID, result, token); err != nil {
		return false, err
	}
	return true, nil
}

// reparse deletes existing rows for datID and re-inserts in batches of
// ingestBatchSize, consulting the cancel token between batches, relying
// on INSERT OR IGNORE so the unique SHA-1 index quietly drops collisions.
func (idx *Index) reparse(datID int64, result dat.ParseResult, token *cancelctl.Token) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM rom_hashes WHERE dat_id = ?`, datID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM game_names WHERE dat_id = ?`, datID); err != nil {
		return err
	}

	seenGames := map[string]bool{}
	for start := 0; start < len(result.Roms); start += ingestBatchSize {
		if token.Cancelled() {
			return model.NewError(model.KindCancelled, "", errors.New("ingest cancelled mid-parse"))
		}
		end := start + ingestBatchSize
		if end > len(result.Roms) {
			end = len(result.Roms)
		}
		for _, r := range result.Roms[start:end] {
			var sha1 any
			if r.SHA1 != "" {
				sha1 = r.SHA1
			}
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO rom_hashes (dat_id, platform_id, rom_name, set_name, crc32, sha1, size_bytes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				datID, r.PlatformID, r.RomName, r.SetName, r.CRC32, sha1, r.Size,
			); err != nil {
				return err
			}
			key := strings.ToLower(r.SetName)
			if key != "" && !seenGames[key] {
				seenGames[key] = true
				if _, err := tx.Exec(`INSERT INTO game_names (dat_id, platform_id, game_name) VALUES (?, ?, ?)`, datID, r.PlatformID, key); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

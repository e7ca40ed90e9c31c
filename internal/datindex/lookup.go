package datindex

import (
	"database/sql"
	"strings"
)

// LookupOutcome classifies why a lookup did or didn't resolve to a single
// platform, distinguishing a clean miss from cross-DAT ambiguity.
type LookupOutcome int

const (
	// OutcomeNoMatch means no rom_hashes row matched the key at all.
	OutcomeNoMatch LookupOutcome = iota
	// OutcomeMatch means exactly one platform owns every matching row.
	OutcomeMatch
	// OutcomeCrossCheck means matching rows span more than one platform;
	// callers should surface this as DAT_CROSS_CHECK rather than silently
	// picking one.
	OutcomeCrossCheck
)

// Match is one DAT-confirmed rom_hashes row.
type Match struct {
	PlatformID string
	RomName    string
	SetName    string
	DatID      int64
}

// LookupResult is the outcome of a content-addressed DAT lookup.
type LookupResult struct {
	Outcome LookupOutcome
	Matches []Match // all matching rows; OutcomeMatch may carry several rows of one platform
}

func singleOrCrossCheck(matches []Match) LookupResult {
	if len(matches) == 0 {
		return LookupResult{Outcome: OutcomeNoMatch}
	}
	platforms := map[string]bool{}
	for _, m := range matches {
		platforms[m.PlatformID] = true
	}
	if len(platforms) > 1 {
		return LookupResult{Outcome: OutcomeCrossCheck, Matches: matches}
	}
	return LookupResult{Outcome: OutcomeMatch, Matches: matches}
}

func scanMatches(rows *sql.Rows) ([]Match, error) {
	var out []Match
	for rows.Next() {
		var m Match
		var platformID sql.NullString
		if err := rows.Scan(&platformID, &m.RomName, &m.SetName, &m.DatID); err != nil {
			return nil, err
		}
		m.PlatformID = platformID.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// LookupSHA1 is the primary content-addressed lookup: exact SHA-1 match
// against active DAT files.
func (idx *Index) LookupSHA1(sha1 string) (LookupResult, error) {
	sha1 = strings.ToLower(sha1)
	rows, err := idx.db.Query(`
		SELECT rh.platform_id, rh.rom_name, rh.set_name, rh.dat_id
		FROM rom_hashes rh
		JOIN dat_files df ON df.id = rh.dat_id
		WHERE rh.sha1 = ? AND df.active = 1`, sha1)
	if err != nil {
		return LookupResult{}, err
	}
	defer rows.Close()
	matches, err := scanMatches(rows)
	if err != nil {
		return LookupResult{}, err
	}
	return singleOrCrossCheck(matches), nil
}

// LookupCRCSize is the fallback lookup keyed on CRC32+size, used when SHA-1
// is unavailable or yields no match.
func (idx *Index) LookupCRCSize(crc32 string, size int64) (LookupResult, error) {
	crc32 = strings.ToLower(crc32)
	rows, err := idx.db.Query(`
		SELECT rh.platform_id, rh.rom_name, rh.set_name, rh.dat_id
		FROM rom_hashes rh
		JOIN dat_files df ON df.id = rh.dat_id
		WHERE rh.crc32 = ? AND rh.size_bytes = ? AND df.active = 1`, crc32, size)
	if err != nil {
		return LookupResult{}, err
	}
	defer rows.Close()
	matches, err := scanMatches(rows)
	if err != nil {
		return LookupResult{}, err
	}
	return singleOrCrossCheck(matches), nil
}

// LookupCRCSizeWhenSHA1Missing runs the CRC32+size fallback only over rows
// that have no recorded SHA-1: a SHA-1-bearing DAT entry should never be
// shadowed by a CRC/size collision from a different, less complete DAT.
func (idx *Index) LookupCRCSizeWhenSHA1Missing(crc32 string, size int64) (LookupResult, error) {
	crc32 = strings.ToLower(crc32)
	rows, err := idx.db.Query(`
		SELECT rh.platform_id, rh.rom_name, rh.set_name, rh.dat_id
		FROM rom_hashes rh
		JOIN dat_files df ON df.id = rh.dat_id
		WHERE rh.crc32 = ? AND rh.size_bytes = ? AND rh.sha1 IS NULL AND df.active = 1`, crc32, size)
	if err != nil {
		return LookupResult{}, err
	}
	defer rows.Close()
	matches, err := scanMatches(rows)
	if err != nil {
		return LookupResult{}, err
	}
	return singleOrCrossCheck(matches), nil
}

// LookupGame is the last-resort fallback: match by normalized game name
// alone, used when hash-based lookups fail entirely.
func (idx *Index) LookupGame(name string) (LookupResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	rows, err := idx.db.Query(`
		SELECT gn.platform_id, '' AS rom_name, gn.game_name, gn.dat_id
		FROM game_names gn
		JOIN dat_files df ON df.id = gn.dat_id
		WHERE gn.game_name = ? AND df.active = 1`, name)
	if err != nil {
		return LookupResult{}, err
	}
	defer rows.Close()
	matches, err := scanMatches(rows)
	if err != nil {
		return LookupResult{}, err
	}
	return singleOrCrossCheck(matches), nil
}

// Lookup runs the full content-addressed resolution order: SHA-1 first,
// then CRC32+size restricted to SHA-1-less rows, then CRC+size
// unrestricted, then game name. It returns the first non-empty result.
func (idx *Index) Lookup(sha1, crc32 string, size int64, gameName string) (LookupResult, error) {
	if sha1 != "" {
		res, err := idx.LookupSHA1(sha1)
		if err != nil {
			return LookupResult{}, err
		}
		if res.Outcome != OutcomeNoMatch {
			return res, nil
		}
	}
	if crc32 != "" {
		res, err := idx.LookupCRCSizeWhenSHA1Missing(crc32, size)
		if err != nil {
			return LookupResult{}, err
		}
		if res.Outcome != OutcomeNoMatch {
			return res, nil
		}
		res, err = idx.LookupCRCSize(crc32, size)
		if err != nil {
			return LookupResult{}, err
		}
		if res.Outcome != OutcomeNoMatch {
			return res, nil
		}
	}
	if gameName != "" {
		return idx.LookupGame(gameName)
	}
	return LookupResult{Outcome: OutcomeNoMatch}, nil
}

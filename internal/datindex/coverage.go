package datindex

// PlatformCoverage is the rom_hashes row count contributed by active DAT
// files for a single platform.
type PlatformCoverage struct {
	PlatformID string
	RomCount   int
}

// CoverageReport summarizes what a DAT index currently knows: which source
// files are active, how many roms each platform contributes, and how many
// rom_hashes rows reference a dat_files row that is no longer active
// (orphaned by a purge that hasn't run, or mid-ingest).
type CoverageReport struct {
	ActiveDatFiles []string
	Platforms      []PlatformCoverage
	OrphanedRows   int
}

// Coverage computes a CoverageReport against the current index state.
func (idx *Index) Coverage() (CoverageReport, error) {
	var report CoverageReport

	rows, err := idx.db.Query(`SELECT source_path FROM dat_files WHERE active = 1 ORDER BY source_path`)
	if err != nil {
		return report, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return report, err
		}
		report.ActiveDatFiles = append(report.ActiveDatFiles, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return report, err
	}
	rows.Close()

	platRows, err := idx.db.Query(`
		SELECT COALESCE(rh.platform_id, ''), COUNT(*)
		FROM rom_hashes rh
		JOIN dat_files df ON df.id = rh.dat_id
		WHERE df.active = 1
		GROUP BY rh.platform_id
		ORDER BY rh.platform_id`)
	if err != nil {
		return report, err
	}
	for platRows.Next() {
		var pc PlatformCoverage
		if err := platRows.Scan(&pc.PlatformID, &pc.RomCount); err != nil {
			platRows.Close()
			return report, err
		}
		report.Platforms = append(report.Platforms, pc)
	}
	if err := platRows.Err(); err != nil {
		platRows.Close()
		return report, err
	}
	platRows.Close()

	err = idx.db.QueryRow(`
		SELECT COUNT(*) FROM rom_hashes rh
		JOIN dat_files df ON df.id = rh.dat_id
		WHERE df.active = 0`).Scan(&report.OrphanedRows)
	if err != nil {
		return report, err
	}

	return report, nil
}

package datindex

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDat = `<?xml version="1.0"?>
<datafile>
  <header><name>Nintendo - Nintendo Entertainment System</name></header>
  <game name="Super Mario Bros">
    <rom name="Super Mario Bros.nes" size="24592" crc="5cf548d3" sha1="8e0f691b8c27fc0b5d924fa8e7738db5b1f37c63"/>
  </game>
</datafile>
`

func writeSampleDat(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "nes.dat")
	if err := os.WriteFile(path, []byte(sampleDat), 0644); err != nil {
		t.Fatalf("write dat: %v", err)
	}
	return path
}

func TestIngestAndLookupSHA1(t *testing.T) {
	tmp := t.TempDir()
	writeSampleDat(t, tmp)

	idx, err := Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	stats, err := idx.Ingest([]string{tmp}, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("expected 1 updated dat, got %+v", stats)
	}

	res, err := idx.LookupSHA1("8e0f691b8c27fc0b5d924fa8e7738db5b1f37c63")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if res.Outcome != OutcomeMatch {
		t.Fatalf("expected match, got outcome %v", res.Outcome)
	}
	if res.Matches[0].PlatformID == "" {
		t.Errorf("expected a resolved platform id")
	}
}

func TestIngestSkipsUnchangedFile(t *testing.T) {
	tmp := t.TempDir()
	writeSampleDat(t, tmp)

	idx, err := Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Ingest([]string{tmp}, nil); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	stats, err := idx.Ingest([]string{tmp}, nil)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if stats.Skipped != 1 || stats.Updated != 0 {
		t.Errorf("expected second ingest to skip unchanged file, got %+v", stats)
	}
}

func TestIngestPurgesRemovedDat(t *testing.T) {
	tmp := t.TempDir()
	datPath := writeSampleDat(t, tmp)

	idx, err := Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Ingest([]string{tmp}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := os.Remove(datPath); err != nil {
		t.Fatalf("remove dat: %v", err)
	}

	stats, err := idx.Ingest([]string{tmp}, nil)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if stats.Removed != 1 {
		t.Errorf("expected removal of purged dat, got %+v", stats)
	}

	res, err := idx.LookupSHA1("8e0f691b8c27fc0b5d924fa8e7738db5b1f37c63")
	if err != nil {
		t.Fatalf("lookup after purge: %v", err)
	}
	if res.Outcome != OutcomeNoMatch {
		t.Errorf("expected no match after purge, got %v", res.Outcome)
	}
}

func TestLookupCrossCheck(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "a.dat"), []byte(`<?xml version="1.0"?>
<datafile>
  <header><name>Nintendo - Game Boy</name></header>
  <game name="Shared"><rom name="shared.gb" size="100" crc="deadbeef"/></game>
</datafile>`), 0644)
	os.WriteFile(filepath.Join(tmp, "b.dat"), []byte(`<?xml version="1.0"?>
<datafile>
  <header><name>Sega - Game Gear</name></header>
  <game name="Shared"><rom name="shared.gg" size="100" crc="deadbeef"/></game>
</datafile>`), 0644)

	idx, err := Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Ingest([]string{tmp}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	res, err := idx.LookupCRCSize("deadbeef", 100)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if res.Outcome != OutcomeCrossCheck {
		t.Errorf("expected cross-check outcome for ambiguous crc+size, got %v", res.Outcome)
	}
}

func TestCoverageReport(t *testing.T) {
	tmp := t.TempDir()
	writeSampleDat(t, tmp)

	idx, err := Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Ingest([]string{tmp}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	report, err := idx.Coverage()
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if len(report.ActiveDatFiles) != 1 {
		t.Errorf("expected 1 active dat file, got %d", len(report.ActiveDatFiles))
	}
	if len(report.Platforms) != 1 || report.Platforms[0].RomCount != 1 {
		t.Errorf("expected 1 platform with 1 rom, got %+v", report.Platforms)
	}
}

func TestShardedIngestAndLookup(t *testing.T) {
	tmp := t.TempDir()
	writeSampleDat(t, tmp)

	shardDir := filepath.Join(tmp, "shards")
	os.MkdirAll(shardDir, 0755)

	sharded, err := OpenSharded(shardDir, 3)
	if err != nil {
		t.Fatalf("open sharded: %v", err)
	}
	defer sharded.Close()

	if _, err := sharded.Ingest([]string{tmp}, nil); err != nil {
		t.Fatalf("sharded ingest: %v", err)
	}

	res, err := sharded.Lookup("8e0f691b8c27fc0b5d924fa8e7738db5b1f37c63", "", 0, "")
	if err != nil {
		t.Fatalf("sharded lookup: %v", err)
	}
	if res.Outcome != OutcomeMatch {
		t.Fatalf("expected match from sharded lookup, got %v", res.Outcome)
	}
}

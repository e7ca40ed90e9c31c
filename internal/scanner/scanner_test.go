package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/overrides"
	"github.com/retronian/romsorter/internal/platformcatalog"
)

func testCatalog() *platformcatalog.Catalog {
	return &platformcatalog.Catalog{
		Policy: platformcatalog.DefaultPolicy,
		Platforms: []platformcatalog.Platform{
			{
				PlatformID:        "GB",
				CanonicalName:     "Game Boy",
				TypicalExtensions: []string{".gb"},
				AllowedContainers: []string{"zip", "raw"},
			},
			{
				PlatformID:        "NES",
				CanonicalName:     "Nintendo Entertainment System",
				TypicalExtensions: []string{".nes"},
				AllowedContainers: []string{"zip", "raw"},
			},
		},
	}
}

const sampleDat = `<?xml version="1.0"?>
<datafile>
  <header><name>Nintendo - Game Boy</name></header>
  <game name="Tetris">
    <rom name="Tetris.gb" size="19" crc="f6a8c86d" sha1="bb0bb2ca45bc6e50bbd7c3e53b53b1e8b3deb9c1"/>
  </game>
</datafile>
`

// TestScanFallsBackToHeuristicWhenNoDatMatch exercises the full pipeline
// with a real datindex.Index wired in: the file's content doesn't match
// anything in the ingested DAT, so identification falls through to the
// extension-unique heuristic branch rather than a dat:* source.
func TestScanFallsBackToHeuristicWhenNoDatMatch(t *testing.T) {
	tmp := t.TempDir()
	datDir := filepath.Join(tmp, "dats")
	os.MkdirAll(datDir, 0755)
	os.WriteFile(filepath.Join(datDir, "gb.dat"), []byte(sampleDat), 0644)

	idx, err := datindex.Open(filepath.Join(tmp, "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	if _, err := idx.Ingest([]string{datDir}, nil); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	romsDir := filepath.Join(tmp, "roms")
	os.MkdirAll(romsDir, 0755)
	romPath := filepath.Join(romsDir, "tetris.gb")
	if err := os.WriteFile(romPath, []byte("content that does not match the dat's recorded hash"), 0644); err != nil {
		t.Fatalf("write rom: %v", err)
	}

	s := New(Options{Catalog: testCatalog(), Index: idx, Threads: 2})
	result, err := s.Scan(romsDir, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.DetectedSystem != "GB" {
		t.Errorf("expected GB via extension-unique fallback, got %q (source %q)", item.DetectedSystem, item.DetectionSource)
	}
	if item.DetectionSource != "extension-unique" {
		t.Errorf("expected extension-unique source, got %q", item.DetectionSource)
	}
	if item.IsExact {
		t.Errorf("extension-unique match should not be marked exact")
	}
}

func TestScanIdentifiesByExtensionUnique(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "mario.nes"), []byte("not a known rom"), 0644)

	s := New(Options{Catalog: testCatalog(), Threads: 2})
	result, err := s.Scan(tmp, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.DetectedSystem != "NES" {
		t.Errorf("expected NES via unique extension, got %q (source %q)", item.DetectedSystem, item.DetectionSource)
	}
	if item.DetectionSource != "extension-unique" {
		t.Errorf("expected extension-unique source, got %q", item.DetectionSource)
	}
}

func TestScanAppliesOverride(t *testing.T) {
	tmp := t.TempDir()
	os.WriteFile(filepath.Join(tmp, "mystery.bin"), []byte("unidentifiable"), 0644)

	rules := []overrides.Rule{
		{Name: "force-mystery", PathEquals: filepath.Join(tmp, "mystery.bin"), PlatformID: "PCFX"},
	}

	s := New(Options{Catalog: testCatalog(), Overrides: rules, Threads: 2})
	result, err := s.Scan(tmp, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(result.Items))
	}
	item := result.Items[0]
	if item.DetectedSystem != "PCFX" || item.DetectionSource != "override" || !item.IsExact {
		t.Errorf("expected override to force PCFX, got %+v", item)
	}
}

func TestScanCancelledReturnsPartial(t *testing.T) {
	tmp := t.TempDir()
	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(tmp, fmt.Sprintf("f%d.nes", i)), []byte("x"), 0644)
	}

	token := cancelctl.New()
	token.Cancel()

	s := New(Options{Catalog: testCatalog(), Threads: 2})
	result, err := s.Scan(tmp, token)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("expected scan cancelled before any item processed, got %d items", len(result.Items))
	}
}

package dat

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

const sampleXML = `<?xml version="1.0"?>
<datafile>
	<header>
		<name>Nintendo - Nintendo Entertainment System (Headered)</name>
		<description>Nintendo - NES</description>
	</header>
	<game name="Super Mario Bros. (World)">
		<rom name="Super Mario Bros. (World).nes" size="40976" crc="3337EC46" sha1="facee9c577a5262dbe33ac4930bb0b58c8c037f"/>
	</game>
	<game name="The Legend of Zelda (USA)">
		<rom name="The Legend of Zelda (USA).nes" size="131088" crc="A12D74C1" sha1="1234567890abcdef1234567890abcdef12345678"/>
	</game>
</datafile>`

func TestParseFileXML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.dat")
	os.WriteFile(path, []byte(sampleXML), 0644)

	res, err := ParseFile(path, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.HeaderName != "Nintendo - Nintendo Entertainment System (Headered)" {
		t.Errorf("unexpected header: %s", res.HeaderName)
	}
	if len(res.Roms) != 2 {
		t.Fatalf("expected 2 roms, got %d", len(res.Roms))
	}
	if res.Roms[0].PlatformID != "NES" {
		t.Errorf("expected NES platform, got %s", res.Roms[0].PlatformID)
	}
	if res.Roms[0].CRC32 != "3337ec46" {
		t.Errorf("unexpected crc: %s", res.Roms[0].CRC32)
	}
	if res.Roms[0].SHA1 != "facee9c577a5262dbe33ac4930bb0b58c8c037f" {
		t.Errorf("unexpected sha1: %s", res.Roms[0].SHA1)
	}
}

const sampleClr = `clrmamepro (
	name "Nintendo - Game Boy Advance"
	description "Nintendo - Game Boy Advance"
)

game (
	name "Super Mario Advance (USA)"
	rom ( name "Super Mario Advance (USA).gba" size 4194304 crc a1b2c3d4 sha1 0000000000000000000000000000000000000a )
)
`

func TestParseFileClrMamePro(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "test.dat")
	os.WriteFile(path, []byte(sampleClr), 0644)

	res, err := ParseFile(path, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Roms) != 1 {
		t.Fatalf("expected 1 rom, got %d", len(res.Roms))
	}
	if res.Roms[0].PlatformID != "GBA" {
		t.Errorf("expected GBA platform, got %s", res.Roms[0].PlatformID)
	}
	if res.Roms[0].SetName != "Super Mario Advance (USA)" {
		t.Errorf("unexpected set name: %s", res.Roms[0].SetName)
	}
}

func TestParseFileZipWrapped(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "nointro.zip")
	zf, _ := os.Create(zipPath)
	zw := zip.NewWriter(zf)
	w, _ := zw.Create("Nintendo - NES.dat")
	w.Write([]byte(sampleXML))
	zw.Close()
	zf.Close()

	res, err := ParseFile(zipPath, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(res.Roms) != 2 {
		t.Fatalf("expected 2 roms from zipped dat, got %d", len(res.Roms))
	}
}

func TestPlatformFromHeader(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nintendo - Game Boy Advance", "GBA"},
		{"Sega - Mega Drive - Genesis", "Genesis"},
		{"Nintendo - Super Nintendo Entertainment System", "SNES"},
		{"Sony - PlayStation", "PSX"},
		{"MAME 0.245", "Arcade"},
		{"Unknown System", ""},
	}
	for _, tt := range tests {
		if got := PlatformFromHeader(tt.name); got != tt.want {
			t.Errorf("PlatformFromHeader(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

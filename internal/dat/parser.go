// Package dat implements streaming parsers for Logiqx XML and ClrMamePro
// text DAT catalogs, including zip-wrapped DATs on disk.
package dat

import (
	"archive/zip"
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/model"
)

// Rom is one <rom>/rom( ) row yielded by the parser, carrying everything
// the DAT Index (§4.D) needs to persist a row.
type Rom struct {
	PlatformID string
	RomName    string
	SetName    string // the enclosing game/set name
	CRC32      string // lowercase, padded to 8 hex
	SHA1       string // lowercase 40 hex, or "" if absent
	Size       int64
}

// ParseResult is everything one DAT source file (or zip member) yields.
type ParseResult struct {
	HeaderName string
	Roms       []Rom
}

type datafileXML struct {
	XMLName xml.Name  `xml:"datafile"`
	Header  headerXML `xml:"header"`
	Games   []gameXML `xml:"game"`
}

type headerXML struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

type gameXML struct {
	Name string   `xml:"name,attr"`
	ROMs []romXML `xml:"rom"`
}

type romXML struct {
	Name string `xml:"name,attr"`
	Size string `xml:"size,attr"`
	CRC  string `xml:"crc,attr"`
	SHA1 string `xml:"sha1,attr"`
}

// ParseFile parses one DAT source file. It dispatches on extension and
// content: a .zip is unwrapped and every .dat/.xml member parsed in turn
// (results concatenated, first header name wins); everything else is
// sniffed as either ClrMamePro text or Logiqx XML. platformOverride, when
// non-empty, is used verbatim instead of deriving the platform from the
// header name.
func ParseFile(path string, platformOverride string) (ParseResult, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return parseZip(path, platformOverride)
	}

	f, err := os.Open(path)
	if err != nil {
		return ParseResult{}, model.NewError(model.KindIo, path, errors.Wrap(err, "open DAT"))
	}
	defer f.Close()
	return parseStream(f, platformOverride)
}

func parseZip(path string, platformOverride string) (ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return ParseResult{}, model.NewError(model.KindDatParse, path, errors.Wrap(err, "open DAT zip"))
	}
	defer r.Close()

	var out ParseResult
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(f.Name))
		if ext != ".dat" && ext != ".xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			glog.Errorf("dat: skipping unreadable zip entry %s!%s: %v", path, f.Name, err)
			continue
		}
		res, err := parseStream(rc, platformOverride)
		rc.Close()
		if err != nil {
			glog.Errorf("dat: malformed entry %s!%s, skipping: %v", path, f.Name, err)
			continue
		}
		if out.HeaderName == "" {
			out.HeaderName = res.HeaderName
		}
		out.Roms = append(out.Roms, res.Roms...)
	}
	return out, nil
}

// parseStream sniffs the first non-blank line to decide between
// ClrMamePro text and Logiqx XML, then parses accordingly.
func parseStream(r io.Reader, platformOverride string) (ParseResult, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	peek, _ := br.Peek(4096)
	firstLine := strings.TrimSpace(firstNonBlankLine(string(peek)))

	if strings.HasPrefix(firstLine, "clrmamepro") {
		return parseClrMamePro(br, platformOverride)
	}
	return parseXML(br, platformOverride)
}

func firstNonBlankLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseXML(r io.Reader, platformOverride string) (ParseResult, error) {
	var df datafileXML
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&df); err != nil {
		return ParseResult{}, model.NewError(model.KindDatParse, "", errors.Wrap(err, "decode DAT XML"))
	}

	platform := platformOverride
	if platform == "" {
		platform = PlatformFromHeader(df.Header.Name)
	}

	var roms []Rom
	for _, g := range df.Games {
		for _, rom := range g.ROMs {
			size, _ := strconv.ParseInt(rom.Size, 10, 64)
			roms = append(roms, Rom{
				PlatformID: platform,
				RomName:    rom.Name,
				SetName:    g.Name,
				CRC32:      normalizeCRC(rom.CRC),
				SHA1:       strings.ToLower(rom.SHA1),
				Size:       size,
			})
		}
	}
	return ParseResult{HeaderName: df.Header.Name, Roms: roms}, nil
}

// A ClrMamePro rom line looks like:
//
//	rom ( name "Super Mario Bros. (World).nes" size 40976 crc 3337ec46 md5 ... sha1 facee9c5... )
//
// Fields are order-independent key/value pairs inside the parens; each is
// matched with its own small regex rather than one composite pattern.
var (
	clrGameNameRe = regexp.MustCompile(`^\s*name\s+"([^"]*)"`)
	clrFieldName  = regexp.MustCompile(`name\s+"([^"]*)"`)
	clrFieldSize  = regexp.MustCompile(`\bsize\s+(\d+)`)
	clrFieldCRC   = regexp.MustCompile(`\bcrc\s+([0-9a-fA-F]{1,8})\b`)
	clrFieldSHA1  = regexp.MustCompile(`\bsha1\s+([0-9a-fA-F]{40})\b`)
)

func parseClrMamePro(r io.Reader, platformOverride string) (ParseResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	headerName := ""
	inHeader := false
	currentGame := ""
	var roms []Rom

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "clrmamepro"):
			inHeader = true
		case line == ")" && inHeader:
			inHeader = false
		case strings.HasPrefix(line, "game (") || line == "game (":
			currentGame = ""
		case inHeader && headerName == "":
			if m := clrGameNameRe.FindStringSubmatch(line); m != nil {
				headerName = m[1]
			}
		case !inHeader && currentGame == "" && strings.HasPrefix(line, `name "`):
			if m := clrGameNameRe.FindStringSubmatch(line); m != nil {
				currentGame = m[1]
			}
		}

		if strings.Contains(line, "rom (") || strings.HasPrefix(line, "rom (") {
			nameM := clrFieldName.FindStringSubmatch(line)
			crcM := clrFieldCRC.FindStringSubmatch(line)
			if nameM != nil && crcM != nil {
				var size int64
				if sizeM := clrFieldSize.FindStringSubmatch(line); sizeM != nil {
					size, _ = strconv.ParseInt(sizeM[1], 10, 64)
				}
				sha1 := ""
				if shaM := clrFieldSHA1.FindStringSubmatch(line); shaM != nil {
					sha1 = shaM[1]
				}
				name := currentGame
				if name == "" {
					name = nameM[1]
				}
				roms = append(roms, Rom{
					RomName: nameM[1],
					SetName: name,
					SHA1:    strings.ToLower(sha1),
					CRC32:   normalizeCRC(crcM[1]),
					Size:    size,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ParseResult{}, model.NewError(model.KindDatParse, "", errors.Wrap(err, "scan ClrMamePro DAT"))
	}

	platform := platformOverride
	if platform == "" {
		platform = PlatformFromHeader(headerName)
	}
	for i := range roms {
		roms[i].PlatformID = platform
	}
	return ParseResult{HeaderName: headerName, Roms: roms}, nil
}

// normalizeCRC lowercases and zero-pads a CRC32 hex string to 8 digits.
func normalizeCRC(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%08s", s)
}

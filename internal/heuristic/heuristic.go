// Package heuristic implements a conservative candidate scorer over
// filename tokens, extensions, and containers.
package heuristic

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/platformcatalog"
)

const (
	scoreExtension      = 2.0
	scoreContainer      = 1.0
	scorePositiveToken  = 1.0
	scoreNegativeToken  = -2.0
)

// FileInfo is what the evaluator needs about one candidate file: its
// directory components, stem and name, the lowercased extension (with
// leading dot), and the container kind ("zip", "raw", etc).
type FileInfo struct {
	PathComponents []string // directory components only; the stem is in Stem
	Stem           string
	Name           string
	Extension      string
	Container      string
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizedHaystack builds the lowercased, whitespace-collapsed string
// positive/negative tokens are substring-matched against, composed of
// path components, stem, and name.
func normalizedHaystack(f FileInfo) string {
	parts := append(append([]string{}, f.PathComponents...), f.Stem, f.Name)
	joined := strings.ToLower(strings.Join(parts, " "))
	return whitespaceRe.ReplaceAllString(joined, " ")
}

// Evaluate scores every platform in catalog against f, drops zero/negative
// and minimum_signals-failing candidates, and returns the top ten sorted
// by (-score, platform_id) for determinism.
func Evaluate(catalog *platformcatalog.Catalog, f FileInfo) []model.CandidateScore {
	haystack := normalizedHaystack(f)

	var out []model.CandidateScore
	for _, p := range catalog.Platforms {
		score := 0.0
		var signals []string
		signalTypes := map[string]bool{}

		if hasExt(p.TypicalExtensions, f.Extension) {
			score += scoreExtension
			signals = append(signals, "EXT:"+f.Extension)
			signalTypes["extension"] = true
		}
		if f.Container != "" && contains(p.AllowedContainers, f.Container) {
			score += scoreContainer
			signals = append(signals, "CONTAINER:"+f.Container)
			signalTypes["container"] = true
		}
		for _, tok := range p.PositiveTokens {
			if tok == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(tok)) {
				score += scorePositiveToken
				signals = append(signals, "TOKEN:"+tok)
				signalTypes["token"] = true
			}
		}
		for _, tok := range p.NegativeTokens {
			if tok == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(tok)) {
				score += scoreNegativeToken
				signals = append(signals, "NEG:"+tok)
				signalTypes["negative"] = true
			}
		}

		if len(p.MinimumSignals) > 0 && !satisfiesMinimum(p.MinimumSignals, signalTypes) {
			continue
		}
		if score <= 0 {
			continue
		}

		out = append(out, model.CandidateScore{
			PlatformID: p.PlatformID,
			Score:      score,
			Signals:    signals,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlatformID < out[j].PlatformID
	})

	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func satisfiesMinimum(required []string, have map[string]bool) bool {
	for _, req := range required {
		if !have[req] {
			return false
		}
	}
	return true
}

func hasExt(exts []string, ext string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}

// BuildFileInfo derives a FileInfo from an input path and container kind.
func BuildFileInfo(path, container string) FileInfo {
	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	dir := filepath.Dir(path)
	var comps []string
	for dir != "." && dir != string(filepath.Separator) && dir != "" {
		comps = append([]string{filepath.Base(dir)}, comps...)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return FileInfo{
		PathComponents: comps,
		Stem:           stem,
		Name:           name,
		Extension:      ext,
		Container:      container,
	}
}

package scanner

import (
	"os"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/hashutil"
	"github.com/retronian/romsorter/internal/heuristic"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/platformcatalog"
)

// nesMagic is the iNES header signature; its presence flips a bare
// extension like .bin to NES with reduced confidence.
var nesMagic = []byte("NES\x1a")

// identifyFile runs steps 3-7 of the per-file pipeline for a plain
// (non-zip, non-PS3-directory) file.
func (s *Scanner) identifyFile(path string, info os.FileInfo, token *cancelctl.Token) (model.ScanItem, error) {
	chunkSize := 0
	if s.opts.Config != nil {
		chunkSize = s.opts.Config.ChunkSize
	}
	hashRes, err := hashutil.HashFile(path, chunkSize, token)
	if err != nil {
		return model.ScanItem{}, err
	}

	item := model.ScanItem{
		InputPath: path,
		SizeBytes: hashRes.Size,
		CRC32:     hashRes.CRC32Hex,
		SHA1:      hashRes.SHA1Hex,
		Raw:       model.Evidence{},
	}

	if s.opts.Index != nil {
		lookup, err := s.opts.Index.Lookup(hashRes.SHA1Hex, hashRes.CRC32Hex, hashRes.Size, "")
		if err != nil {
			return model.ScanItem{}, err
		}
		switch lookup.Outcome {
		case datindex.OutcomeMatch:
			item.DetectedSystem = lookup.Matches[0].PlatformID
			item.IsExact = true
			item.DetectionConfidence = model.ExactConfidence
			if hashRes.SHA1Hex != "" {
				item.DetectionSource = "dat:sha1"
			} else {
				item.DetectionSource = "dat:crc_size"
			}
			return item, nil
		case datindex.OutcomeCrossCheck:
			item.DetectedSystem = model.Unknown
			item.DetectionSource = "dat-cross-check"
			item.Raw.CandidateSystems = platformsOf(lookup.Matches)
			return item, nil
		}
	}

	s.identifyHeuristically(&item)
	s.applyMagicBytes(&item, path)
	s.applyConfidenceFloor(&item)
	return item, nil
}

func platformsOf(matches []datindex.Match) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if !seen[m.PlatformID] {
			seen[m.PlatformID] = true
			out = append(out, m.PlatformID)
		}
	}
	return out
}

// identifyHeuristically implements step 5: the strict four-way heuristic
// policy, falling through to Unknown when nothing resolves cleanly.
func (s *Scanner) identifyHeuristically(item *model.ScanItem) {
	item.DetectedSystem = model.Unknown
	if s.opts.Catalog == nil {
		return
	}

	fi := heuristic.BuildFileInfo(item.InputPath, "")
	candidates := heuristic.Evaluate(s.opts.Catalog, fi)
	item.Raw.Candidates = candidates
	if len(candidates) == 0 {
		return
	}

	if owner, ok := s.extIx.UniqueOwner(fi.Extension); ok {
		item.DetectedSystem = owner
		item.DetectionSource = "extension-unique"
		item.DetectionConfidence = 0.90
		return
	}

	top := candidates[0]
	policy := s.opts.Policy

	if len(candidates) >= 2 {
		runner := candidates[1]
		if top.Score-runner.Score < policy.MinScoreDelta && top.Score >= policy.MinTopScore && runner.Score >= policy.MinTopScore {
			item.DetectionSource = "ambiguous-candidates"
			item.Raw.PreOverrideGuess = top.PlatformID
			return
		}
		if top.Score >= policy.MinTopScore && runner.Score >= policy.MinTopScore && sharesConflictGroup(s.opts.Catalog, top.PlatformID, runner.PlatformID) {
			item.DetectionSource = "conflict-group"
			item.Raw.PreOverrideGuess = top.PlatformID
			return
		}
	}

	if top.Score >= policy.ContradictionMinScore {
		if legacy, ok := s.extIx.UniqueOwner(fi.Extension); ok && legacy != top.PlatformID {
			item.DetectionSource = "contradiction-candidates"
			item.Raw.PreOverrideGuess = top.PlatformID
			return
		}
	}

	item.DetectedSystem = top.PlatformID
	item.DetectionSource = "heuristic"
	item.DetectionConfidence = heuristicConfidence(top.Score)
}

// heuristicConfidence maps a raw heuristic score to a [0,1) confidence;
// it never reaches the default 0.95 policy threshold on its own, by
// design (§4.G's "strict policy" leaves plain heuristic matches subject
// to the post-policy confidence floor in step 7).
func heuristicConfidence(score float64) float64 {
	c := 0.5 + 0.1*score
	if c > 0.94 {
		c = 0.94
	}
	return c
}

func sharesConflictGroup(catalog *platformcatalog.Catalog, a, b string) bool {
	pa, ok := catalog.PlatformByID(a)
	if !ok {
		return false
	}
	pb, ok := catalog.PlatformByID(b)
	if !ok {
		return false
	}
	for _, ga := range pa.ConflictGroups {
		for _, gb := range pb.ConflictGroups {
			if ga == gb {
				return true
			}
		}
	}
	return false
}

// applyMagicBytes implements step 6: a bare, ambiguous extension like
// .bin is flipped to NES when the file actually carries an iNES header,
// overriding an Unknown (but never a DAT-confirmed) result.
func (s *Scanner) applyMagicBytes(item *model.ScanItem, path string) {
	if item.DetectedSystem != model.Unknown {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	header := make([]byte, len(nesMagic))
	n, _ := f.Read(header)
	if n < len(nesMagic) {
		return
	}
	for i, b := range nesMagic {
		if header[i] != b {
			return
		}
	}
	item.DetectedSystem = "NES"
	item.DetectionSource = "magic-bytes"
	item.DetectionConfidence = 0.85
}

// applyConfidenceFloor implements step 7: unless the source is exempt
// (manual, override, or any dat:* source), an identification below the
// configured threshold is forced back to Unknown, preserving the
// original guess in Raw for UI display.
func (s *Scanner) applyConfidenceFloor(item *model.ScanItem) {
	threshold := 0.95
	if s.opts.ConfidenceThreshold > 0 {
		threshold = s.opts.ConfidenceThreshold
	}
	if item.Confident(threshold) {
		return
	}
	if isExemptSource(item.DetectionSource) {
		return
	}
	item.Raw.PreOverrideGuess = item.DetectedSystem
	item.Raw.PolicyThreshold = threshold
	item.DetectedSystem = model.Unknown
	item.DetectionSource = "policy-low-confidence"
}

func isExemptSource(source string) bool {
	switch source {
	case "manual", "override", "dat:sha1", "dat:crc_size":
		return true
	}
	return false
}

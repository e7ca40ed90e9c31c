package scanner

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/datindex"
	"github.com/retronian/romsorter/internal/hashutil"
	"github.com/retronian/romsorter/internal/heuristic"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/pathsafety"
)

// identifyZip implements step 2: open the archive read-only, hash each
// safe entry, and query the DAT index per entry. All DAT-confirmed
// entries agreeing on one platform resolves the whole archive; otherwise
// it's ambiguous and routed to Unknown.
func (s *Scanner) identifyZip(path string, info os.FileInfo, token *cancelctl.Token) (model.ScanItem, error) {
	item := model.ScanItem{InputPath: path, SizeBytes: info.Size()}

	if s.opts.LazyArchives {
		item.DetectedSystem = model.Unknown
		item.DetectionSource = "archive-lazy"
		return item, nil
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return model.ScanItem{}, err
	}
	defer r.Close()

	confirmed := map[string]int{}
	anyCrossCheck := false
	extensionOwners := map[string]bool{}
	chunkSize := 0
	if s.opts.Config != nil {
		chunkSize = s.opts.Config.ChunkSize
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := pathsafety.ValidateArchiveMemberName(f.Name); err != nil {
			glog.Errorf("scanner: skipping unsafe archive member %s!%s: %v", path, f.Name, err)
			continue
		}
		if pathsafety.ArchiveMemberIsSymlink(f.ExternalAttrs) {
			glog.Errorf("scanner: skipping symlink archive member %s!%s", path, f.Name)
			continue
		}
		if token.Cancelled() {
			return model.ScanItem{}, model.NewError(model.KindCancelled, path, errors.New("archive scan cancelled"))
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		if s.extIx != nil {
			if owner, ok := s.extIx.UniqueOwner(ext); ok {
				extensionOwners[owner] = true
			}
		}

		if s.opts.Index == nil {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			glog.Errorf("scanner: failed to open archive member %s!%s: %v", path, f.Name, err)
			continue
		}
		hashRes, err := hashutil.Hash(rc, chunkSize, token)
		rc.Close()
		if err != nil {
			glog.Errorf("scanner: failed to hash archive member %s!%s: %v", path, f.Name, err)
			continue
		}

		lookup, err := s.opts.Index.Lookup(hashRes.SHA1Hex, hashRes.CRC32Hex, hashRes.Size, "")
		if err != nil {
			return model.ScanItem{}, err
		}
		switch lookup.Outcome {
		case datindex.OutcomeMatch:
			confirmed[lookup.Matches[0].PlatformID]++
		case datindex.OutcomeCrossCheck:
			anyCrossCheck = true
			for _, p := range platformsOf(lookup.Matches) {
				confirmed[p]++
			}
		}
	}

	switch {
	case anyCrossCheck || len(confirmed) > 1:
		item.DetectedSystem = model.Unknown
		item.DetectionSource = "zip-conflict"
		item.Raw.CandidateSystems = platformKeys(confirmed)
		return item, nil
	case len(confirmed) == 1:
		for p := range confirmed {
			item.DetectedSystem = p
		}
		item.IsExact = true
		item.DetectionConfidence = model.ExactConfidence
		item.DetectionSource = "zip-dat-confirmed"
		return item, nil
	}

	switch len(extensionOwners) {
	case 0:
		var candidates []model.CandidateScore
		if s.opts.Catalog != nil {
			fi := heuristic.BuildFileInfo(path, "zip")
			candidates = heuristic.Evaluate(s.opts.Catalog, fi)
		}
		item.Raw.Candidates = candidates
		if len(candidates) > 0 {
			item.DetectedSystem = candidates[0].PlatformID
			item.DetectionSource = "heuristic"
			item.DetectionConfidence = heuristicConfidence(candidates[0].Score)
		} else {
			item.DetectedSystem = model.Unknown
			item.DetectionSource = "no-match"
		}
		s.applyConfidenceFloor(&item)
		return item, nil
	case 1:
		for p := range extensionOwners {
			item.DetectedSystem = p
		}
		item.DetectionSource = "extension-unique"
		item.DetectionConfidence = 0.90
		return item, nil
	default:
		item.DetectedSystem = model.Unknown
		item.DetectionSource = "zip-mixed"
		item.Raw.CandidateSystems = mapKeys(extensionOwners)
		return item, nil
	}
}

func platformKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func mapKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

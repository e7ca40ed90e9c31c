package executor

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/model"
)

// checkpoint is the on-disk resume record: the full plan plus the index
// of the first action not yet attempted.
type checkpoint struct {
	Plan            model.SortPlan `json:"plan"`
	ResumeFromIndex int            `json:"resume_from_index"`
}

// writeCheckpoint persists plan and the index to resume from atomically
// (write to a sibling temp file, then rename), so a crash mid-write never
// leaves a corrupt checkpoint behind.
func writeCheckpoint(path string, plan model.SortPlan, resumeFromIndex int) error {
	data, err := json.MarshalIndent(checkpoint{Plan: plan, ResumeFromIndex: resumeFromIndex}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal checkpoint")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write checkpoint temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "rename checkpoint into place")
	}
	return nil
}

// readCheckpoint loads a checkpoint previously written by writeCheckpoint,
// returning the remaining plan (actions from resume_from_index onward)
// and that index for caller bookkeeping.
func readCheckpoint(path string) (model.SortPlan, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SortPlan{}, 0, errors.Wrap(err, "read checkpoint")
	}
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return model.SortPlan{}, 0, errors.Wrap(err, "parse checkpoint")
	}
	remaining := cp.Plan
	if cp.ResumeFromIndex > 0 && cp.ResumeFromIndex <= len(cp.Plan.Actions) {
		remaining.Actions = cp.Plan.Actions[cp.ResumeFromIndex:]
	}
	return remaining, cp.ResumeFromIndex, nil
}

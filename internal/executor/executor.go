// Package executor applies a SortPlan's actions in order, one at a time,
// with cancellation and resume support.
package executor

import (
	"os"
	"path/filepath"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/pathsafety"
)

// ProgressFunc is called with (done, total) as actions complete.
type ProgressFunc func(done, total int)

// Options configures one Execute call.
type Options struct {
	Config     *config.Config
	DryRun     bool
	Backup     bool   // copy an overwritten target to backups/ first
	BackupDir  string // relative to DestPath when non-absolute
	ResumePath string // when non-empty, a cancel persists a checkpoint here
	OnProgress ProgressFunc
}

// Executor applies a SortPlan's actions one at a time, preserving the
// plan's total order so observable side effects complete (or roll back)
// before the next action begins.
type Executor struct {
	opts Options
}

// New builds an Executor.
func New(opts Options) *Executor {
	return &Executor{opts: opts}
}

// Execute runs plan to completion or until token fires. On cancellation
// it persists a resume checkpoint (when ResumePath is set) and returns a
// report with Cancelled set; it never returns a non-nil error for a plain
// cancel, only for a checkpoint write failure.
func (e *Executor) Execute(plan model.SortPlan, token *cancelctl.Token) (model.SortReport, error) {
	var report model.SortReport
	chunkSize := 0
	if e.opts.Config != nil {
		chunkSize = e.opts.Config.Scanner.ChunkSize
	}

	total := len(plan.Actions)
	for i, action := range plan.Actions {
		if token.Cancelled() {
			report.Cancelled = true
			if e.opts.ResumePath != "" {
				if err := writeCheckpoint(e.opts.ResumePath, plan, i); err != nil {
					return report, err
				}
			}
			return report, nil
		}

		e.runOne(action, plan, chunkSize, token, &report)
		if e.opts.OnProgress != nil {
			e.opts.OnProgress(i+1, total)
		}
	}
	return report, nil
}

// Resume loads a checkpoint persisted by a prior cancelled Execute and
// continues from resume_from_index.
func Resume(path string) (model.SortPlan, int, error) {
	return readCheckpoint(path)
}

func (e *Executor) runOne(action model.SortAction, plan model.SortPlan, chunkSize int, token *cancelctl.Token, report *model.SortReport) {
	report.Processed++

	if action.Action == model.ActionSkip {
		report.Skipped++
		return
	}

	srcPath, err := pathsafety.Validate(action.InputPath, "", pathsafety.ModeRead)
	if err != nil {
		report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
		return
	}
	dstPath, err := pathsafety.Validate(action.PlannedTargetPath, plan.DestPath, pathsafety.ModeWrite)
	if err != nil {
		report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
		return
	}

	if action.Status == "overwrite" && !e.opts.DryRun {
		if err := e.backupIfEnabled(dstPath, plan.DestPath); err != nil {
			report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
			return
		}
	}

	if !e.opts.DryRun {
		if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
			report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
			return
		}
	}

	switch action.Action {
	case model.ActionCopy:
		if !e.opts.DryRun {
			if err := copyFile(srcPath, dstPath, chunkSize, token); err != nil {
				report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
				return
			}
		}
		report.Copied++
	case model.ActionMove:
		if !e.opts.DryRun {
			if err := moveFile(srcPath, dstPath, chunkSize, token); err != nil {
				report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
				return
			}
		}
		report.Moved++
	case model.ActionConvert:
		if !e.opts.DryRun {
			if err := runConversion(action, srcPath, dstPath, plan.Mode, token); err != nil {
				report.Errors = append(report.Errors, model.ActionError{InputPath: action.InputPath, Message: err.Error()})
				return
			}
		}
		if plan.Mode == model.ModeMove {
			report.Moved++
		} else {
			report.Copied++
		}
	}

	if action.Status == "overwrite" {
		report.Overwritten++
	}
	if action.Status == "renamed" {
		report.Renamed++
	}
}

func (e *Executor) backupIfEnabled(targetPath, dest string) error {
	if !e.opts.Backup {
		return nil
	}
	backupDir := e.opts.BackupDir
	if backupDir == "" {
		backupDir = "backups"
	}
	if !filepath.IsAbs(backupDir) {
		backupDir = filepath.Join(dest, backupDir)
	}
	return backupTarget(targetPath, backupDir)
}

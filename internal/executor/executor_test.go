package executor

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
)

func TestExecuteCopiesFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.gb")
	if err := os.WriteFile(src, []byte("rom data"), 0644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(filepath.Join(dest, "GB"), 0755); err != nil {
		t.Fatalf("mkdir dest: %v", err)
	}
	target := filepath.Join(dest, "GB", "src.gb")

	plan := model.SortPlan{DestPath: dest, Mode: model.ModeCopy, Actions: []model.SortAction{
		{InputPath: src, PlannedTargetPath: target, Action: model.ActionCopy, Status: "planned"},
	}}

	e := New(Options{})
	report, err := e.Execute(plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Copied != 1 || report.Processed != 1 || len(report.Errors) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(got) != "rom data" {
		t.Errorf("expected copied content, got %q", got)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source should still exist after copy: %v", err)
	}
	if _, err := os.Stat(target + ".part"); !os.IsNotExist(err) {
		t.Errorf("expected no leftover .part file")
	}
}

func TestExecuteMovesFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.gb")
	os.WriteFile(src, []byte("rom data"), 0644)
	dest := filepath.Join(tmp, "dest")
	os.MkdirAll(filepath.Join(dest, "GB"), 0755)
	target := filepath.Join(dest, "GB", "src.gb")

	plan := model.SortPlan{DestPath: dest, Mode: model.ModeMove, Actions: []model.SortAction{
		{InputPath: src, PlannedTargetPath: target, Action: model.ActionMove, Status: "planned"},
	}}

	e := New(Options{})
	report, err := e.Execute(plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Moved != 1 {
		t.Fatalf("expected 1 moved, got %+v", report)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("expected source removed after move")
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("expected target to exist: %v", err)
	}
}

func TestExecuteOverwriteBacksUpExistingTarget(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.gb")
	os.WriteFile(src, []byte("new content"), 0644)
	dest := filepath.Join(tmp, "dest")
	os.MkdirAll(filepath.Join(dest, "GB"), 0755)
	target := filepath.Join(dest, "GB", "src.gb")
	os.WriteFile(target, []byte("old content"), 0644)

	plan := model.SortPlan{DestPath: dest, Mode: model.ModeCopy, Actions: []model.SortAction{
		{InputPath: src, PlannedTargetPath: target, Action: model.ActionCopy, Status: "overwrite"},
	}}

	e := New(Options{Backup: true})
	report, err := e.Execute(plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Overwritten != 1 || report.Copied != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	got, _ := os.ReadFile(target)
	if string(got) != "new content" {
		t.Errorf("expected target overwritten, got %q", got)
	}
	entries, err := os.ReadDir(filepath.Join(dest, "backups"))
	if err != nil {
		t.Fatalf("read backups dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 backup file, got %d", len(entries))
	}
	backed, _ := os.ReadFile(filepath.Join(dest, "backups", entries[0].Name()))
	if string(backed) != "old content" {
		t.Errorf("expected backup to hold old content, got %q", backed)
	}
}

func TestExecuteSkipAction(t *testing.T) {
	plan := model.SortPlan{Actions: []model.SortAction{
		{InputPath: "/roms/mystery.bin", Action: model.ActionSkip, Status: "low-confidence"},
	}}
	e := New(Options{})
	report, err := e.Execute(plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Skipped != 1 || report.Processed != 1 || report.Copied != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestExecuteDryRunMutatesNothing(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.gb")
	os.WriteFile(src, []byte("rom data"), 0644)
	dest := filepath.Join(tmp, "dest")
	os.MkdirAll(filepath.Join(dest, "GB"), 0755)
	target := filepath.Join(dest, "GB", "src.gb")

	plan := model.SortPlan{DestPath: dest, Mode: model.ModeCopy, Actions: []model.SortAction{
		{InputPath: src, PlannedTargetPath: target, Action: model.ActionCopy, Status: "planned"},
	}}

	e := New(Options{DryRun: true})
	report, err := e.Execute(plan, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Copied != 1 {
		t.Fatalf("expected dry-run to still count the copy, got %+v", report)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("dry run must not create the target file")
	}
}

func TestExecuteCancelPersistsCheckpointAndResume(t *testing.T) {
	tmp := t.TempDir()
	dest := filepath.Join(tmp, "dest")
	os.MkdirAll(filepath.Join(dest, "GB"), 0755)

	var actions []model.SortAction
	for i := 0; i < 3; i++ {
		src := filepath.Join(tmp, filepathBase(i))
		os.WriteFile(src, []byte("x"), 0644)
		actions = append(actions, model.SortAction{
			InputPath:         src,
			PlannedTargetPath: filepath.Join(dest, "GB", filepathBase(i)),
			Action:            model.ActionCopy,
			Status:            "planned",
		})
	}
	plan := model.SortPlan{DestPath: dest, Mode: model.ModeCopy, Actions: actions}

	token := cancelctl.New()
	token.Cancel()
	checkpointPath := filepath.Join(tmp, "resume.json")

	e := New(Options{ResumePath: checkpointPath})
	report, err := e.Execute(plan, token)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !report.Cancelled {
		t.Fatalf("expected cancelled report")
	}
	if report.Processed != 0 {
		t.Errorf("expected no actions processed before a pre-fired cancel, got %d", report.Processed)
	}

	remaining, resumeFrom, err := Resume(checkpointPath)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumeFrom != 0 {
		t.Errorf("expected resume_from_index 0, got %d", resumeFrom)
	}
	if len(remaining.Actions) != 3 {
		t.Errorf("expected all 3 actions still pending, got %d", len(remaining.Actions))
	}
}

func filepathBase(i int) string {
	return "f" + string(rune('a'+i)) + ".gb"
}

func TestRunConversionInvokesToolAndCleansUpSource(t *testing.T) {
	toolPath, err := exec.LookPath("cp")
	if err != nil {
		t.Skip("cp not available on this system")
	}

	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.iso")
	os.WriteFile(src, []byte("disc image"), 0644)
	dst := filepath.Join(tmp, "out.chd")

	action := model.SortAction{
		InputPath:      src,
		ConversionTool: toolPath,
		ConversionArgs: []string{"{src}", "{dst}"},
	}

	if err := runConversion(action, src, dst, model.ModeMove, nil); err != nil {
		t.Fatalf("runConversion: %v", err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("expected converted output to exist: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("expected source removed after move-mode conversion")
	}
}

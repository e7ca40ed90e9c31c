package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/model"
)

func baseConfig() *config.Config {
	cfg := config.Default()
	cfg.Features.Sorting.CreateUnknownFolder = true
	return cfg
}

func TestPlanRoutesConfidentItemUnderPlatformFolder(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true, DetectionConfidence: model.ExactConfidence},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(plan.Actions))
	}
	action := plan.Actions[0]
	want := filepath.Join(dest, "GB", "tetris.gb")
	if action.PlannedTargetPath != want {
		t.Errorf("expected target %s, got %s", want, action.PlannedTargetPath)
	}
	if action.Action != model.ActionCopy {
		t.Errorf("expected copy action, got %s", action.Action)
	}
}

func TestPlanRoutesUnknownToUnknownFolder(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/mystery.bin", DetectedSystem: model.Unknown, DetectionSource: "no-match"},
	}}

	cfg := baseConfig()
	plan, err := Plan(result, dest, cfg, model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := filepath.Join(dest, "Unknown", "mystery.bin")
	if plan.Actions[0].PlannedTargetPath != want {
		t.Errorf("expected target %s, got %s", want, plan.Actions[0].PlannedTargetPath)
	}
}

func TestPlanRoutesUnknownToQuarantineWhenEnabled(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/mystery.bin", DetectedSystem: model.Unknown, DetectionSource: "no-match"},
	}}

	cfg := baseConfig()
	cfg.Features.Sorting.QuarantineUnknown = true
	plan, err := Plan(result, dest, cfg, model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := filepath.Join(dest, "Quarantine", "mystery.bin")
	if plan.Actions[0].PlannedTargetPath != want {
		t.Errorf("expected target %s, got %s", want, plan.Actions[0].PlannedTargetPath)
	}
}

func TestPlanSkipsUnknownWhenNoUnknownHandlingEnabled(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/mystery.bin", DetectedSystem: model.Unknown, DetectionSource: "no-match"},
	}}

	cfg := config.Default()
	plan, err := Plan(result, dest, cfg, model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	action := plan.Actions[0]
	if action.Action != model.ActionSkip || action.Status != "low-confidence" {
		t.Errorf("expected skip/low-confidence, got %s/%s", action.Action, action.Status)
	}
	if action.PlannedTargetPath != "" {
		t.Errorf("skipped action should have no planned target")
	}
}

func TestPlanConflictSkip(t *testing.T) {
	dest := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dest, "GB"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	existing := filepath.Join(dest, "GB", "tetris.gb")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	action := plan.Actions[0]
	if action.Action != model.ActionSkip || action.Status != "target-exists" {
		t.Errorf("expected skip/target-exists, got %s/%s", action.Action, action.Status)
	}
}

func TestPlanConflictRenameAppendsCounter(t *testing.T) {
	dest := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dest, "GB"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	existing := filepath.Join(dest, "GB", "tetris.gb")
	if err := os.WriteFile(existing, []byte("already here"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeCopy, model.ConflictRename, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	action := plan.Actions[0]
	want := filepath.Join(dest, "GB", "tetris (1).gb")
	if action.PlannedTargetPath != want {
		t.Errorf("expected renamed target %s, got %s", want, action.PlannedTargetPath)
	}
	if action.Status != "renamed" {
		t.Errorf("expected status renamed, got %s", action.Status)
	}
}

func TestPlanConflictRenameAvoidsCollisionWithinSameRun(t *testing.T) {
	dest := t.TempDir()

	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/a/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
		{InputPath: "/roms/b/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeCopy, model.ConflictRename, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(plan.Actions))
	}
	first := plan.Actions[0].PlannedTargetPath
	second := plan.Actions[1].PlannedTargetPath
	if first == second {
		t.Errorf("expected distinct targets for colliding inputs, both were %s", first)
	}
	wantSecond := filepath.Join(dest, "GB", "tetris (1).gb")
	if second != wantSecond {
		t.Errorf("expected second item renamed to %s, got %s", wantSecond, second)
	}
}

func TestPlanUsesMoveModeAction(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeMove, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Actions[0].Action != model.ActionMove {
		t.Errorf("expected move action, got %s", plan.Actions[0].Action)
	}
}

func TestPlanIsDeterministicallyOrderedByInputPath(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/z.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
		{InputPath: "/roms/a.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
		{InputPath: "/roms/m.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := Plan(result, dest, baseConfig(), model.ModeCopy, model.ConflictSkip, nil)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	got := []string{plan.Actions[0].InputPath, plan.Actions[1].InputPath, plan.Actions[2].InputPath}
	want := []string{"/roms/a.gb", "/roms/m.gb", "/roms/z.gb"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected order %v, got %v", want, got)
			break
		}
	}
}

func TestDiffSortPlansReportsAddedRemovedChanged(t *testing.T) {
	a := model.SortPlan{Actions: []model.SortAction{
		{InputPath: "/roms/keep.gb", PlannedTargetPath: "/dest/GB/keep.gb", Action: model.ActionCopy},
		{InputPath: "/roms/gone.gb", PlannedTargetPath: "/dest/GB/gone.gb", Action: model.ActionCopy},
		{InputPath: "/roms/moved.gb", PlannedTargetPath: "/dest/GB/moved.gb", Action: model.ActionCopy},
	}}
	b := model.SortPlan{Actions: []model.SortAction{
		{InputPath: "/roms/keep.gb", PlannedTargetPath: "/dest/GB/keep.gb", Action: model.ActionCopy},
		{InputPath: "/roms/moved.gb", PlannedTargetPath: "/dest/GB/moved.gb (1)", Action: model.ActionCopy},
		{InputPath: "/roms/new.gb", PlannedTargetPath: "/dest/GB/new.gb", Action: model.ActionCopy},
	}}

	diff := DiffSortPlans(a, b)
	if len(diff.Added) != 1 || diff.Added[0] != "/roms/new.gb" {
		t.Errorf("expected added [/roms/new.gb], got %v", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "/roms/gone.gb" {
		t.Errorf("expected removed [/roms/gone.gb], got %v", diff.Removed)
	}
	if len(diff.Changed) != 1 || diff.Changed[0] != "/roms/moved.gb" {
		t.Errorf("expected changed [/roms/moved.gb], got %v", diff.Changed)
	}
}

func TestPlanRebuildForcesCopyAndSkip(t *testing.T) {
	dest := t.TempDir()
	result := model.ScanResult{Items: []model.ScanItem{
		{InputPath: "/roms/tetris.gb", DetectedSystem: "GB", DetectionSource: "dat:sha1", IsExact: true},
	}}

	plan, err := PlanRebuild(result, dest, baseConfig(), nil)
	if err != nil {
		t.Fatalf("plan rebuild: %v", err)
	}
	if plan.Mode != model.ModeCopy || plan.OnConflict != model.ConflictSkip {
		t.Errorf("expected copy/skip, got %s/%s", plan.Mode, plan.OnConflict)
	}
}

func TestPlanRejectsDestThatIsNotADirectory(t *testing.T) {
	tmp := t.TempDir()
	destFile := filepath.Join(tmp, "not-a-dir")
	if err := os.WriteFile(destFile, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Plan(model.ScanResult{}, destFile, baseConfig(), model.ModeCopy, model.ConflictSkip, nil)
	if err == nil {
		t.Fatal("expected error for non-directory dest")
	}
}

// Package planner implements the pure function that turns a ScanResult
// into a deterministic, totally-ordered SortPlan.
package planner

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/pathsafety"
)

// Plan builds a SortPlan from result, routing each item under destPath
// per cfg's sorting/conversion rules. It is a pure function of its
// arguments plus the filesystem state it reads (existing targets,
// on-PATH tools) — no mutation occurs.
func Plan(result model.ScanResult, destPath string, cfg *config.Config, mode model.Mode, onConflict model.ConflictPolicy, token *cancelctl.Token) (model.SortPlan, error) {
	dest, err := resolveDestDir(destPath)
	if err != nil {
		return model.SortPlan{}, err
	}

	plan := model.SortPlan{DestPath: dest, Mode: mode, OnConflict: onConflict}
	existingTargets := map[string]bool{}

	for _, item := range sortItemsByInputPath(result.Items) {
		if token.Cancelled() {
			return plan, nil
		}
		action := planOne(item, dest, cfg, mode, onConflict, existingTargets)
		plan.Actions = append(plan.Actions, action)
		if action.PlannedTargetPath != "" {
			existingTargets[action.PlannedTargetPath] = true
		}
	}

	return plan, nil
}

// PlanRebuild forces mode=copy, on_conflict=skip for reconstructive runs
// that fill gaps in an existing library without touching what's there.
func PlanRebuild(result model.ScanResult, destPath string, cfg *config.Config, token *cancelctl.Token) (model.SortPlan, error) {
	return Plan(result, destPath, cfg, model.ModeCopy, model.ConflictSkip, token)
}

func resolveDestDir(destPath string) (string, error) {
	abs, err := filepath.Abs(destPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil // creatable; Executor creates on demand
		}
		return "", err
	}
	if !info.IsDir() {
		return "", errors.Errorf("%s exists and is not a directory", abs)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", errors.Errorf("%s is a symlink", abs)
	}
	return abs, nil
}

func sortItemsByInputPath(items []model.ScanItem) []model.ScanItem {
	out := append([]model.ScanItem{}, items...)
	sort.Slice(out, func(i, j int) bool { return out[i].InputPath < out[j].InputPath })
	return out
}

func planOne(item model.ScanItem, dest string, cfg *config.Config, mode model.Mode, onConflict model.ConflictPolicy, existingTargets map[string]bool) model.SortAction {
	sorting := cfg.Features.Sorting
	threshold := sorting.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.95
	}

	action := model.SortAction{
		InputPath:      item.InputPath,
		DetectedSystem: item.DetectedSystem,
		Action:         model.ActionCopy,
	}
	if mode == model.ModeMove {
		action.Action = model.ActionMove
	}

	confident := item.Confident(threshold)

	var targetDir string
	switch {
	case confident:
		targetDir = filepath.Join(dest, safeComponent(item.DetectedSystem))
	case sorting.QuarantineUnknown:
		targetDir = filepath.Join(dest, safeComponent(orDefault(sorting.QuarantineFolderName, "Quarantine")))
	case sorting.CreateUnknownFolder:
		targetDir = filepath.Join(dest, safeComponent(orDefault(sorting.UnknownFolderName, "Unknown")))
	default:
		action.Action = model.ActionSkip
		action.Status = "low-confidence"
		return action
	}

	if sorting.RegionBasedSorting && item.Region != "" {
		targetDir = filepath.Join(targetDir, safeComponent(string(item.Region)))
	}
	if sorting.PreserveFolderStructure {
		if rel, err := filepath.Rel(dest, filepath.Dir(item.InputPath)); err == nil && !strings.HasPrefix(rel, "..") {
			targetDir = filepath.Join(targetDir, rel)
		}
	}

	name := filepath.Base(item.InputPath)
	if sorting.RenameTemplate != "" {
		name = renderTemplate(sorting.RenameTemplate, item)
	}

	ext := strings.ToLower(filepath.Ext(item.InputPath))
	outExt := ext
	if sorting.Conversion.Enabled && item.IsExact {
		if rule, tool, ok := matchConversionRule(sorting.Conversion, ext, item.DetectedSystem); ok {
			if tool != "" {
				action.Action = model.ActionConvert
				action.ConversionTool = tool
				action.ConversionToolKey = rule.ToolKey
				action.ConversionArgs = rule.Args
				action.ConversionOutputExtension = rule.OutputExtension
				outExt = rule.OutputExtension
				name = strings.TrimSuffix(name, filepath.Ext(name)) + outExt
			} else if !sorting.Conversion.FallbackOnMissingTool {
				action.Action = model.ActionSkip
				action.Status = "missing-conversion-tool"
				return action
			}
		}
	}

	target := filepath.Join(targetDir, name)
	target = resolveConflict(target, onConflict, existingTargets, &action)
	if action.Action == model.ActionSkip {
		return action
	}

	validated, err := pathsafety.Validate(target, dest, pathsafety.ModeWrite)
	if err != nil {
		action.Action = model.ActionSkip
		action.Status = "invalid-target"
		action.Error = err.Error()
		return action
	}

	action.PlannedTargetPath = validated
	action.Status = "planned"
	return action
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var unsafeComponentRe = regexp.MustCompile(`[/\\:*?"<>|\x00]`)

// safeComponent sanitizes a path component so it cannot introduce a
// traversal or an OS-reserved character.
func safeComponent(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return unsafeComponentRe.ReplaceAllString(s, "_")
}

var templateTokenRe = regexp.MustCompile(`\{(\w+)\}`)

// renderTemplate substitutes {name, ext, ext_dot, system, region, version,
// languages} tokens, rendering unknown keys as empty (a "safe-dict
// fallback") rather than failing.
func renderTemplate(tmpl string, item model.ScanItem) string {
	name := filepath.Base(item.InputPath)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	values := map[string]string{
		"name":    stem,
		"ext":     strings.TrimPrefix(ext, "."),
		"ext_dot": ext,
		"system":  item.DetectedSystem,
		"region":  string(item.Region),
		"version": item.Version,
		"languages": strings.Join(item.Languages, ","),
	}

	return templateTokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		key := tok[1 : len(tok)-1]
		return values[key]
	})
}

func matchConversionRule(conv config.ConversionConfig, ext, system string) (config.ConversionRule, string, bool) {
	for _, rule := range conv.Rules {
		if !hasFold(rule.Extensions, ext) {
			continue
		}
		if len(rule.Systems) > 0 && !hasFold(rule.Systems, system) {
			continue
		}
		tool := rule.ToolPath
		if tool == "" {
			tool = rule.ToolKey
		}
		if tool != "" {
			if _, err := exec.LookPath(tool); err != nil && !filepath.IsAbs(tool) {
				tool = ""
			}
		}
		return rule, tool, true
	}
	return config.ConversionRule{}, "", false
}

func hasFold(list []string, v string) bool {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}

func resolveConflict(target string, onConflict model.ConflictPolicy, existingTargets map[string]bool, action *model.SortAction) string {
	exists := existingTargets[target] || fileExists(target)
	if !exists {
		return target
	}
	switch onConflict {
	case model.ConflictOverwrite:
		action.Status = "overwrite"
		return target
	case model.ConflictRename:
		dir := filepath.Dir(target)
		ext := filepath.Ext(target)
		stem := strings.TrimSuffix(filepath.Base(target), ext)
		for n := 1; n <= 9999; n++ {
			candidate := filepath.Join(dir, strings.TrimSpace(stem)+" ("+strconv.Itoa(n)+")"+ext)
			if !existingTargets[candidate] && !fileExists(candidate) {
				action.Status = "renamed"
				return candidate
			}
		}
		action.Action = model.ActionSkip
		action.Status = "rename-exhausted"
		return ""
	default: // ConflictSkip
		action.Action = model.ActionSkip
		action.Status = "target-exists"
		return ""
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DiffResult is the {added, removed, changed} summary diff_sort_plans
// reports, keyed by input_path.
type DiffResult struct {
	Added   []string
	Removed []string
	Changed []string
}

// DiffSortPlans compares two plans by input_path, reporting actions
// present only in b (added), only in a (removed), or present in both
// with a different planned target/action (changed).
func DiffSortPlans(a, b model.SortPlan) DiffResult {
	byPathA := map[string]model.SortAction{}
	for _, act := range a.Actions {
		byPathA[act.InputPath] = act
	}
	byPathB := map[string]model.SortAction{}
	for _, act := range b.Actions {
		byPathB[act.InputPath] = act
	}

	var diff DiffResult
	for path, actB := range byPathB {
		actA, ok := byPathA[path]
		if !ok {
			diff.Added = append(diff.Added, path)
			continue
		}
		if actA.PlannedTargetPath != actB.PlannedTargetPath || actA.Action != actB.Action {
			diff.Changed = append(diff.Changed, path)
		}
	}
	for path := range byPathA {
		if _, ok := byPathB[path]; !ok {
			diff.Removed = append(diff.Removed, path)
		}
	}
	return diff
}

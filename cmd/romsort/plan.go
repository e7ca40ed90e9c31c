package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/model"
	"github.com/retronian/romsorter/internal/planner"
)

var planConfiguration struct {
	scanResultPath string
	outputPath     string
	mode           string
	onConflict     string
	rebuild        bool
	diffAgainst    string
}

var planCommand = &cobra.Command{
	Use:   "plan <dest-dir>",
	Short: "Turn a scan result into a deterministic sort plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

func init() {
	flags := planCommand.Flags()
	flags.StringVar(&planConfiguration.scanResultPath, "scan-result", "scan-result.json", "path to a scan result produced by 'scan'")
	flags.StringVarP(&planConfiguration.outputPath, "output", "o", "sort-plan.json", "where to write the sort plan")
	flags.StringVar(&planConfiguration.mode, "mode", "copy", "copy or move")
	flags.StringVar(&planConfiguration.onConflict, "on-conflict", "skip", "skip, overwrite, or rename")
	flags.BoolVar(&planConfiguration.rebuild, "rebuild", false, "force mode=copy, on-conflict=skip for a gap-filling rebuild")
	flags.StringVar(&planConfiguration.diffAgainst, "diff-against", "", "an existing sort plan to diff the new one against")
}

func runPlan(cmd *cobra.Command, args []string) error {
	dest := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	result, err := readScanResultFile(planConfiguration.scanResultPath)
	if err != nil {
		return err
	}

	token := cancelctl.New()
	setupInterruptHandler(token)

	var plan model.SortPlan
	if planConfiguration.rebuild {
		plan, err = planner.PlanRebuild(result, dest, cfg, token)
	} else {
		plan, err = planner.Plan(result, dest, cfg, model.Mode(planConfiguration.mode), model.ConflictPolicy(planConfiguration.onConflict), token)
	}
	if err != nil {
		return err
	}

	if planConfiguration.diffAgainst != "" {
		prior, err := readSortPlanFile(planConfiguration.diffAgainst)
		if err != nil {
			return err
		}
		diff := planner.DiffSortPlans(prior, plan)
		fmt.Printf("diff: %s added, %s removed, %s changed\n",
			humanize.Comma(int64(len(diff.Added))), humanize.Comma(int64(len(diff.Removed))), humanize.Comma(int64(len(diff.Changed))))
	}

	if err := writeJSONFile(planConfiguration.outputPath, plan); err != nil {
		return err
	}

	copies, moves, converts, skips := tallyActions(plan.Actions)
	fmt.Printf("%s %s actions (%s copy, %s move, %s convert, %s skip) -> %s\n",
		color.GreenString("plan complete:"),
		humanize.Comma(int64(len(plan.Actions))),
		humanize.Comma(int64(copies)), humanize.Comma(int64(moves)),
		humanize.Comma(int64(converts)), humanize.Comma(int64(skips)),
		planConfiguration.outputPath)
	return nil
}

func tallyActions(actions []model.SortAction) (copies, moves, converts, skips int) {
	for _, a := range actions {
		switch a.Action {
		case model.ActionCopy:
			copies++
		case model.ActionMove:
			moves++
		case model.ActionConvert:
			converts++
		case model.ActionSkip:
			skips++
		}
	}
	return
}

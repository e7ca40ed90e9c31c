package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/cancelctl"
	"github.com/retronian/romsorter/internal/config"
	"github.com/retronian/romsorter/internal/executor"
	"github.com/retronian/romsorter/internal/model"
)

var executeConfiguration struct {
	planPath   string
	dryRun     bool
	backup     bool
	backupDir  string
	resumePath string
}

var executeCommand = &cobra.Command{
	Use:   "execute",
	Short: "Apply a sort plan's actions to the filesystem",
	Args:  cobra.NoArgs,
	RunE:  runExecute,
}

func init() {
	flags := executeCommand.Flags()
	flags.StringVar(&executeConfiguration.planPath, "plan", "sort-plan.json", "path to a sort plan produced by 'plan'")
	flags.BoolVar(&executeConfiguration.dryRun, "dry-run", false, "don't touch the filesystem, just report what would happen")
	flags.BoolVar(&executeConfiguration.backup, "backup", false, "back up an overwritten target before replacing it")
	flags.StringVar(&executeConfiguration.backupDir, "backup-dir", "", "directory for overwrite backups (default: <dest>/backups)")
	flags.StringVar(&executeConfiguration.resumePath, "resume-path", "", "where to persist a checkpoint if execution is cancelled")

	resumeFlags := resumeCommand.Flags()
	resumeFlags.BoolVar(&executeConfiguration.dryRun, "dry-run", false, "don't touch the filesystem, just report what would happen")
	resumeFlags.BoolVar(&executeConfiguration.backup, "backup", false, "back up an overwritten target before replacing it")
	resumeFlags.StringVar(&executeConfiguration.backupDir, "backup-dir", "", "directory for overwrite backups (default: <dest>/backups)")
	resumeFlags.StringVar(&executeConfiguration.resumePath, "resume-path", "", "where to persist a checkpoint if execution is cancelled again")
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plan, err := readSortPlanFile(executeConfiguration.planPath)
	if err != nil {
		return err
	}
	return executePlan(cfg, plan)
}

var resumeCommand = &cobra.Command{
	Use:   "resume <checkpoint-path>",
	Short: "Continue a previously cancelled execution from its checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	remaining, resumeFrom, err := executor.Resume(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("resuming from action %s, %s remaining\n", humanize.Comma(int64(resumeFrom)), humanize.Comma(int64(len(remaining.Actions))))
	return executePlan(cfg, remaining)
}

func executePlan(cfg *config.Config, plan model.SortPlan) error {
	token := cancelctl.New()
	setupInterruptHandler(token)

	e := executor.New(executor.Options{
		Config:     cfg,
		DryRun:     executeConfiguration.dryRun,
		Backup:     executeConfiguration.backup,
		BackupDir:  executeConfiguration.backupDir,
		ResumePath: executeConfiguration.resumePath,
		OnProgress: printExecuteProgress,
	})

	report, err := e.Execute(plan, token)
	if err != nil {
		return err
	}
	fmt.Println()
	printExecuteReport(report)
	return nil
}

func printExecuteProgress(done, total int) {
	fmt.Printf("\rexecuting %s/%s", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
}

func printExecuteReport(report model.SortReport) {
	fmt.Printf("%s processed=%s copied=%s moved=%s overwritten=%s renamed=%s skipped=%s errors=%s\n",
		color.GreenString("execute complete:"),
		humanize.Comma(int64(report.Processed)), humanize.Comma(int64(report.Copied)),
		humanize.Comma(int64(report.Moved)), humanize.Comma(int64(report.Overwritten)),
		humanize.Comma(int64(report.Renamed)), humanize.Comma(int64(report.Skipped)),
		humanize.Comma(int64(len(report.Errors))))
	for _, e := range report.Errors {
		fmt.Printf("  %s %s: %s\n", color.RedString("error:"), e.InputPath, e.Message)
	}
	if report.Cancelled {
		fmt.Println(color.YellowString("execution was cancelled; rerun 'romsort resume' against the checkpoint to continue"))
	}
}

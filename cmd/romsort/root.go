package main

import (
	"github.com/spf13/cobra"
)

var rootConfiguration struct {
	configPath string
}

var rootCommand = &cobra.Command{
	Use:   "romsort",
	Short: "Identify and sort ROM files into a per-platform library",
}

func init() {
	cobra.EnableCommandSorting = false

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&rootConfiguration.configPath, "config", "", "path to a romsort config YAML file")

	rootCommand.AddCommand(
		datCommand,
		catalogCommand,
		scanCommand,
		planCommand,
		executeCommand,
		resumeCommand,
		serveCommand,
	)
}

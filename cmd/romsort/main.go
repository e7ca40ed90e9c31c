// Command romsort identifies and sorts ROM files into a per-platform
// library, backed by an incrementally-ingested No-Intro/Redump DAT index.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

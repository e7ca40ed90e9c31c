package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/retronian/romsorter/internal/server"
)

var serveConfiguration struct {
	indexPath string
	port      int
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Serve a JSON introspection API over the DAT index and recent run reports",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	flags := serveCommand.Flags()
	flags.StringVar(&serveConfiguration.indexPath, "index", "", "path to the DAT index database (omit to serve without coverage)")
	flags.IntVar(&serveConfiguration.port, "port", 8080, "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var srv *server.Server
	if serveConfiguration.indexPath != "" {
		idx, closeIdx, err := openIndexFromConfig(withIndexPath(cfg, serveConfiguration.indexPath))
		if err != nil {
			return err
		}
		defer closeIdx()
		srv = server.New(idx, serveConfiguration.port)
	} else {
		srv = server.New(nil, serveConfiguration.port)
	}

	fmt.Println(color.GreenString("serving on :%d", serveConfiguration.port))
	return srv.Start()
}

package main

import (
	"os"

	"github.com/qcast/qcast/pkg/version"
	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	app := &cli.App{
		Name:    "qcast",
		Usage:   "operator tools for the qcast chapter service",
		Version: version.Version,
		Commands: []*cli.Command{
			tokenCommand(),
			chaptersCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("qcast failed")
	}
}

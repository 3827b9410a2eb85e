package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/seo-engine/backend/config"
)

const serviceName = "seo-engine"

func main() {
	config.LoadEnv()

	if err := newApp().Run(os.Args); err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  serviceName,
		Usage: "SEO diagnostics: page feature extraction, metric rules and competitor analysis",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serveAction,
			},
			{
				Name:  "extract",
				Usage: "fetch one page and print its feature record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "page to analyze", Required: true},
					&cli.StringFlag{Name: "format", Usage: "output format: json or yaml", Value: "json"},
					&cli.DurationFlag{Name: "timeout", Usage: "fetch timeout", Value: 0},
				},
				Action: extractAction,
			},
			{
				Name:   "migrate",
				Usage:  "create the database schema",
				Action: migrateAction,
			},
			{
				Name:  "usage",
				Usage: "print monthly extraction statistics",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "retain", Usage: "drop months older than this many months (0 keeps all)"},
				},
				Action: usageAction,
			},
		},
		DefaultCommand: "serve",
	}
}

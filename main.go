package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func main() {
	// amounts travel as JSON numbers: API, backups, remote store payloads.
	decimal.MarshalJSONWithoutQuotes = true

	app := &cli.App{
		Name:  "pos",
		Usage: "point of sale ledger with cash cut and remote sync",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path of the JSON config file",
				EnvVars: []string{"POS_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			reportCommand,
			exportCommand,
			importCommand,
			rateCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "tipgate",
		Usage: "Solana tip-validating relay gateway CLI",
		Description: `A command-line tool for interacting with and debugging the tipgate service.

Use this CLI to submit transactions, inspect the relay ledger, and stream relay events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Transaction submission and ledger inspection commands
			{
				Name:  "tx",
				Usage: "Transaction submission and ledger commands",
				Subcommands: []*cli.Command{
					submitCommand(),
					listTransactionsCommand(),
					getTransactionCommand(),
					clearTransactionsCommand(),
				},
			},
			// NATS relay event streaming commands
			{
				Name:  "nats",
				Usage: "NATS relay event streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Gateway server URL",
				EnvVars: []string{"TIPGATE_SERVER_URL"},
				Value:   "http://localhost:3000",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

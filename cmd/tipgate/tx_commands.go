package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brojonat/tipgate/client"
	"github.com/urfave/cli/v2"
)

func newServiceClient(c *cli.Context) *client.Client {
	httpClient := &http.Client{
		Timeout: c.Duration("timeout"),
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	return client.NewClient(c.String("server-url"), httpClient, logger)
}

// submitCommand submits a signed transaction through the gateway.
func submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a base64-encoded signed transaction",
		ArgsUsage: "[base64_transaction]",
		Description: `Submit a signed Solana transaction to the gateway for validation and relay.

The transaction can be passed as an argument, read from a file with --file,
or piped on stdin with --file -.

Example:
  tipgate tx submit --file tx.b64
  cat tx.b64 | tipgate tx submit --file -`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read the base64 transaction from a file ('-' for stdin)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 60 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			txBase64, err := readTransactionArg(c)
			if err != nil {
				return err
			}

			cl := newServiceClient(c)
			signature, err := cl.Submit(context.Background(), txBase64)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				data, _ := json.Marshal(map[string]string{"signature": signature})
				fmt.Println(string(data))
			} else {
				fmt.Printf("✓ Transaction relayed\n")
				fmt.Printf("  Signature: %s\n", signature)
			}
			return nil
		},
	}
}

func readTransactionArg(c *cli.Context) (string, error) {
	file := c.String("file")
	switch {
	case file == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return strings.TrimSpace(string(data)), nil
	case c.NArg() == 1:
		return c.Args().Get(0), nil
	default:
		return "", fmt.Errorf("transaction is required (argument, --file, or --file -)")
	}
}

// listTransactionsCommand lists relayed transactions from the ledger.
func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List relayed transactions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "address",
				Aliases: []string{"a"},
				Usage:   "Filter by sender or tip account address",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl := newServiceClient(c)
			txns, err := cl.ListTransactions(context.Background(), c.String("address"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(txns, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			if len(txns) == 0 {
				fmt.Println("No transactions found")
				return nil
			}
			for _, txn := range txns {
				printTransaction(txn)
			}
			fmt.Printf("Total: %d transaction(s)\n", len(txns))
			return nil
		},
	}
}

// getTransactionCommand retrieves a single transaction by record id.
func getTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a relayed transaction by record id",
		ArgsUsage: "RECORD_ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("record id is required")
			}

			cl := newServiceClient(c)
			txn, err := cl.GetTransaction(context.Background(), c.Args().Get(0))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				data, _ := json.MarshalIndent(txn, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			printTransaction(txn)
			return nil
		},
	}
}

// clearTransactionsCommand wipes the server-side ledger.
func clearTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove all records from the relay ledger",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "Skip the confirmation prompt",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				fmt.Print("Remove ALL ledger records? [y/N]: ")
				var answer string
				fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted")
					return nil
				}
			}

			cl := newServiceClient(c)
			if err := cl.ClearTransactions(context.Background()); err != nil {
				return err
			}
			fmt.Println("✓ Ledger cleared")
			return nil
		},
	}
}

func printTransaction(txn *client.Transaction) {
	fmt.Printf("─────────────────────────────────────────────────────\n")
	fmt.Printf("ID:           %s\n", txn.ID)
	fmt.Printf("Signature:    %s\n", txn.Signature)
	fmt.Printf("From:         %s\n", txn.FromAddress)
	fmt.Printf("Tip Account:  %s\n", txn.ToAddress)
	fmt.Printf("Tip:          %d lamports\n", txn.Amount)
	fmt.Printf("Status:       %s\n", txn.Status)
	fmt.Printf("Created:      %s\n", txn.CreatedAt.Format(time.RFC3339))
	if txn.BlockTime != nil {
		fmt.Printf("Block Time:   %s\n", txn.BlockTime.Format(time.RFC3339))
	}
	if txn.Memo != "" {
		fmt.Printf("Memo:         %s\n", txn.Memo)
	}
	fmt.Printf("\n")
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// healthCommand pings the gateway through the service client.
func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check gateway health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			cl := newServiceClient(c)
			if err := cl.Health(context.Background()); err != nil {
				return fmt.Errorf("gateway at %s is unhealthy: %w", c.String("server-url"), err)
			}

			if c.Bool("json") {
				data, _ := json.Marshal(map[string]string{
					"status": "healthy",
					"url":    c.String("server-url"),
				})
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("✓ Gateway is healthy\n")
			fmt.Printf("  URL: %s\n", c.String("server-url"))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			if c.Bool("json") {
				data, _ := json.Marshal(map[string]string{
					"version": version,
					"commit":  commit,
					"built":   date,
				})
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("tipgate CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)
			return nil
		},
	}
}

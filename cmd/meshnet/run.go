// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/meshnet-foundation/meshnet/console"
	"github.com/meshnet-foundation/meshnet/lib/config"
	"github.com/meshnet-foundation/meshnet/lib/logging"
)

// runNode starts the node and hands the terminal to either the live
// stream view or the interactive console.
func runNode(arguments []string) error {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	stream := flags.Bool("stream", false, "start in the live stream view")
	configPath := flags.String("config", "", "path to the node config file")
	if err := flags.Parse(arguments); err != nil {
		return &usageError{message: err.Error()}
	}

	configuration, err := config.Load(*configPath)
	if err != nil {
		return &initError{err: err}
	}

	logger := logging.New(logging.Options{ForceJSON: *stream})
	node, err := NewNode(configuration, logger)
	if err != nil {
		return &initError{err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer node.Shutdown()

	if err := node.Start(ctx); err != nil {
		return &initError{err: err}
	}

	if *stream {
		return console.RunStream(node.Rows)
	}
	return runConsole(node)
}

// runConsole reads operator commands from stdin until exit or EOF.
func runConsole(node *Node) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch command := fields[0]; command {
		case "exit":
			return nil
		case "v", "version":
			fmt.Println("meshnet " + version)
		case "status":
			fmt.Println(console.Status(node.Rows()))
		case "stream":
			if err := console.RunStream(node.Rows); err != nil {
				fmt.Fprintf(os.Stderr, "stream: %v\n", err)
			}
		case "list":
			if err := listCommand(node, fields[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "list: %v\n", err)
			}
		case "connect":
			if err := connectCommand(node, fields[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "connect: %v\n", err)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (try status, list, connect, stream, exit)\n", command)
		}
	}
}

func listCommand(node *Node, arguments []string) error {
	flags := pflag.NewFlagSet("list", pflag.ContinueOnError)
	nodes := flags.Bool("nodes", false, "list node channels")
	accounts := flags.Bool("accounts", false, "list account channels")
	skip := flags.Int("skip", 0, "skip the first N rows")
	take := flags.Int("take", 0, "show at most M rows (0 = all)")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if *nodes == *accounts {
		return fmt.Errorf("exactly one of --nodes or --accounts is required")
	}

	kind := "node"
	if *accounts {
		kind = "account"
	}
	var rows []console.Row
	for _, row := range node.Rows() {
		if row.Kind == kind {
			rows = append(rows, row)
		}
	}

	if *skip > 0 {
		if *skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[*skip:]
		}
	}
	if *take > 0 && *take < len(rows) {
		rows = rows[:*take]
	}

	fmt.Print(console.Table(console.DefaultTheme(), rows))
	return nil
}

func connectCommand(node *Node, arguments []string) error {
	flags := pflag.NewFlagSet("connect", pflag.ContinueOnError)
	endpoint := flags.String("node", "", "signalling endpoint of the peer node (ws://host:port)")
	if err := flags.Parse(arguments); err != nil {
		return err
	}
	if *endpoint == "" {
		return fmt.Errorf("--node <endpoint> is required")
	}
	return node.ConnectNode(*endpoint)
}

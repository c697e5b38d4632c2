// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Command meshnet runs a mesh peer node: it listens for signalling
// offers, maintains WebRTC channels to peers and accounts, and serves
// an interactive operator console.
package main

import (
	"fmt"
	"os"
)

// version is stamped by the release pipeline; the default marks local
// builds.
var version = "0.0.0-dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(arguments []string) error {
	if len(arguments) == 0 {
		printUsage()
		return &usageError{message: "a command is required"}
	}

	switch command := arguments[0]; command {
	case "run":
		return runNode(arguments[1:])
	case "v", "version":
		fmt.Println("meshnet " + version)
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return &usageError{message: fmt.Sprintf("unknown command %q", command)}
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: meshnet <command> [flags]

commands:
  run [--stream] [--config path]   start the node
  version (alias: v)               print the version
  help                             show this help

console commands (while running):
  status                                    channel counts
  list --nodes|--accounts [--skip N] [--take M]
  connect --node <endpoint>                 dial a peer's signalling hub
  stream                                    live channel table
  v                                         print the version
  exit                                      stop the node
`)
}

// usageError marks argument parsing failures: exit code 1.
type usageError struct {
	message string
}

func (e *usageError) Error() string { return e.message }
func (e *usageError) ExitCode() int { return 1 }

// initError marks fatal startup failures: exit code 2.
type initError struct {
	err error
}

func (e *initError) Error() string { return e.err.Error() }
func (e *initError) Unwrap() error { return e.err }
func (e *initError) ExitCode() int { return 2 }

// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the node's structured loggers. All components
// log through log/slog with key-value properties; this package only
// decides where the records go and how they render.
//
// When stderr is a terminal, records render as human-readable text. When
// stderr is piped or redirected (scripts, containers, CI), records render
// as JSON for ingestion. Components scope their loggers with With():
//
//	logger := logging.New(logging.Options{}).With(
//	    "component", "channel",
//	    "destination", destination.Short(),
//	)
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level to emit. Zero value is slog.LevelInfo.
	Level slog.Leveler

	// Writer overrides the destination. Nil means stderr.
	Writer io.Writer

	// ForceJSON selects the JSON handler even on a terminal. Used when
	// the text UI owns the terminal and logs must stay machine-shaped.
	ForceJSON bool
}

// New builds the node's root logger.
func New(options Options) *slog.Logger {
	writer := options.Writer
	if writer == nil {
		writer = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: options.Level}

	useText := !options.ForceJSON
	if file, ok := writer.(*os.File); ok {
		useText = useText && term.IsTerminal(int(file.Fd()))
	}

	var handler slog.Handler
	if useText {
		handler = slog.NewTextHandler(writer, handlerOptions)
	} else {
		handler = slog.NewJSONHandler(writer, handlerOptions)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Tests use it where log
// output is noise.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

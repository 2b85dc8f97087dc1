// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// huddle-realtime keeps a Huddle client's realtime subscriptions alive.
//
// "huddle-realtime run" is the daemon: it follows the configured rooms'
// message streams and the user's notification and presence streams,
// each owned by a subscription manager that retries failed
// subscriptions with backoff and drops them while the client is
// hidden. The host shell reports visibility and connectivity through
// the control socket; the remaining subcommands are clients of that
// socket, plus "login" to create the sealed session the daemon uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/huddle-chat/huddle/lib/config"
	"github.com/huddle-chat/huddle/lib/version"
)

// command is one subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

func commands() []command {
	return []command{
		{"run", "run the subscription daemon", runDaemon},
		{"login", "log in and store a sealed session", runLogin},
		{"status", "show every manager's topics", runStatus},
		{"visibility", "report the client as hidden or visible", runVisibility},
		{"network", "report the network as online or offline", runNetwork},
		{"reconnect", "retry one topic immediately", runReconnect},
		{"version", "print version information", runVersion},
	}
}

// exitError ends the process with code after the command has written
// its own output.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stderr)
		return nil
	}
	if args[0] == "--version" {
		return runVersion(context.Background(), nil)
	}
	for _, cmd := range commands() {
		if cmd.name == args[0] {
			return cmd.run(context.Background(), args[1:])
		}
	}
	printUsage(os.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func isHelp(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n  huddle-realtime <command> [flags]\n\nCommands:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, cmd := range commands() {
		fmt.Fprintf(tw, "  %s\t%s\n", cmd.name, cmd.summary)
	}
	tw.Flush()
	fmt.Fprintf(w, "\nRun \"huddle-realtime <command> --help\" for a command's flags.\n")
}

// parseFlags parses args into flagSet. It returns done when help was
// printed and the command should return nil.
func parseFlags(flagSet *pflag.FlagSet, args []string) (done bool, err error) {
	flagSet.SetOutput(os.Stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// configFlag registers --config on flagSet.
func configFlag(flagSet *pflag.FlagSet) *string {
	return flagSet.String("config", "", "path to huddle.yaml (default: $HUDDLE_CONFIG)")
}

// loadConfig loads and validates path, or the file named by
// HUDDLE_CONFIG when path is empty.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to a terminal and JSON otherwise.
func newLogger(level slog.Level) *slog.Logger {
	var handler slog.Handler
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// parseLevel maps a --log-level value to a slog level.
func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(value))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", value)
	}
	return level, nil
}

func runVersion(context.Context, []string) error {
	fmt.Printf("huddle-realtime %s\n", version.Info())
	return nil
}

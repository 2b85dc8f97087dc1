// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/huddle-chat/huddle/control"
)

const controlTimeout = 10 * time.Second

// remoteFlags are shared by the control socket subcommands.
type remoteFlags struct {
	config string
	socket string
}

func (f *remoteFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.config, "config", "", "path to huddle.yaml (default: $HUDDLE_CONFIG)")
	flagSet.StringVar(&f.socket, "socket", "", "control socket path (default: from config)")
}

// client connects to the socket named by --socket or the config.
func (f *remoteFlags) client() (*control.Client, error) {
	socket := f.socket
	if socket == "" {
		cfg, err := loadConfig(f.config)
		if err != nil {
			return nil, err
		}
		socket = cfg.Paths.ControlSocket
	}
	return control.NewClient(socket), nil
}

// oneOf parses a single positional argument that must be on or off.
func oneOf(args []string, on, off string) (bool, error) {
	if len(args) != 1 || (args[0] != on && args[0] != off) {
		return false, fmt.Errorf("expected %q or %q", on, off)
	}
	return args[0] == on, nil
}

func runVisibility(ctx context.Context, args []string) error {
	var flags remoteFlags
	flagSet := pflag.NewFlagSet("visibility", pflag.ContinueOnError)
	flags.add(flagSet)
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	hidden, err := oneOf(flagSet.Args(), "hidden", "visible")
	if err != nil {
		return err
	}
	client, err := flags.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return client.SetVisibility(ctx, hidden)
}

func runNetwork(ctx context.Context, args []string) error {
	var flags remoteFlags
	flagSet := pflag.NewFlagSet("network", pflag.ContinueOnError)
	flags.add(flagSet)
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	online, err := oneOf(flagSet.Args(), "online", "offline")
	if err != nil {
		return err
	}
	client, err := flags.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return client.SetNetwork(ctx, online)
}

func runReconnect(ctx context.Context, args []string) error {
	var flags remoteFlags
	flagSet := pflag.NewFlagSet("reconnect", pflag.ContinueOnError)
	flags.add(flagSet)
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if flagSet.NArg() != 2 {
		return fmt.Errorf("expected <manager> <topic>, got %d arguments", flagSet.NArg())
	}
	client, err := flags.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	return client.Reconnect(ctx, flagSet.Arg(0), flagSet.Arg(1))
}

func runStatus(ctx context.Context, args []string) error {
	var flags remoteFlags
	flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flags.add(flagSet)
	asJSON := flagSet.Bool("json", false, "print the status as JSON")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	client, err := flags.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(status)
	}
	fmt.Println(renderStatus(status))
	if dormantTopics(status) > 0 {
		return &exitError{code: 2}
	}
	return nil
}

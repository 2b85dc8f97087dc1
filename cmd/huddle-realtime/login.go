// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/huddle-chat/huddle/lib/session"
	"github.com/huddle-chat/huddle/messaging"
)

func runLogin(ctx context.Context, args []string) error {
	flagSet := pflag.NewFlagSet("login", pflag.ContinueOnError)
	configPath := configFlag(flagSet)
	username := flagSet.StringP("user", "u", "", "user to log in as (localpart or full user id)")
	passwordStdin := flagSet.Bool("password-stdin", false, "read the password from stdin instead of prompting")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	if *username == "" {
		return errors.New("--user is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	password, err := readPassword(os.Stdin, *passwordStdin)
	if err != nil {
		return err
	}

	identity, created, err := session.EnsureIdentity(cfg.Paths.IdentityFile)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(os.Stderr, "created identity %s\n", cfg.Paths.IdentityFile)
	}
	store, err := session.NewFileStore(cfg.Paths.SessionFile, identity)
	if err != nil {
		return err
	}

	homeserver, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver,
		Logger:        newLogger(slog.LevelWarn),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	auth, err := homeserver.Login(ctx, *username, password)
	if err != nil {
		return err
	}

	stored := sessionFromAuth(cfg.Homeserver, auth, time.Now())
	if err := store.Save(stored); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s (device %s), session saved to %s\n",
		stored.UserID, stored.DeviceID, store.Path())
	return nil
}

// sessionFromAuth builds the stored session for a login response
// received at now.
func sessionFromAuth(homeserver string, auth *messaging.AuthResponse, now time.Time) *session.Session {
	stored := &session.Session{
		UserID:       auth.UserID,
		DeviceID:     auth.DeviceID,
		Homeserver:   homeserver,
		AccessToken:  auth.AccessToken,
		RefreshToken: auth.RefreshToken,
	}
	if auth.ExpiresInMS > 0 {
		stored.ExpiresAt = now.Add(time.Duration(auth.ExpiresInMS) * time.Millisecond).UTC()
	}
	return stored
}

// readPassword prompts on the terminal, or reads one line from input
// when fromInput is set or input is not a terminal.
func readPassword(input *os.File, fromInput bool) (string, error) {
	descriptor := int(input.Fd())
	if !fromInput && term.IsTerminal(descriptor) {
		fmt.Fprint(os.Stderr, "Password: ")
		password, err := term.ReadPassword(descriptor)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(password), nil
	}
	return readPasswordLine(input)
}

func readPasswordLine(input io.Reader) (string, error) {
	line, err := bufio.NewReader(input).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

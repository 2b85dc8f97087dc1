// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/huddle-chat/huddle/chat"
	"github.com/huddle-chat/huddle/control"
	"github.com/huddle-chat/huddle/lib/config"
	"github.com/huddle-chat/huddle/lib/session"
	"github.com/huddle-chat/huddle/lib/version"
	"github.com/huddle-chat/huddle/messaging"
	"github.com/huddle-chat/huddle/realtime"
	"github.com/huddle-chat/huddle/transport"
)

func runDaemon(ctx context.Context, args []string) error {
	flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := configFlag(flagSet)
	logLevel := flagSet.String("log-level", "info", "debug, info, warn or error")
	if done, err := parseFlags(flagSet, args); done || err != nil {
		return err
	}
	level, err := parseLevel(*logLevel)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := newLogger(level)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, logger)
}

// managerConfig converts a configured policy into a manager config.
func managerConfig(name string, policy config.ManagerConfig, signals *realtime.Signals, logger *slog.Logger) realtime.Config {
	return realtime.Config{
		Name:                          name,
		IdleTimeout:                   policy.IdleTimeout,
		MaxRetryAttempts:              policy.MaxRetryAttempts,
		DisableVisibilityOptimization: !policy.OptimizeVisibility(),
		Environment:                   signals,
		Logger:                        logger,
	}
}

// serve runs the daemon until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting huddle-realtime",
		"version", version.Info(),
		"environment", cfg.Environment,
		"homeserver", cfg.Homeserver,
	)

	identity, err := session.LoadIdentity(cfg.Paths.IdentityFile)
	if err != nil {
		return err
	}
	store, err := session.NewFileStore(cfg.Paths.SessionFile, identity)
	if err != nil {
		return err
	}
	homeserver, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	sessions, err := session.NewProvider(session.ProviderConfig{
		Store:     store,
		Refresher: homeserver,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	current, err := sessions.Current(ctx)
	if err != nil {
		return err
	}
	logger.Info("loaded session", "session", current)

	client, err := transport.NewClient(transport.ClientConfig{
		Homeserver:  homeserver,
		Sessions:    sessions,
		JoinTimeout: cfg.Transport.JoinTimeout,
		PollTimeout: cfg.Transport.PollTimeout,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	signals := realtime.NewSignals()
	messages := realtime.New(client, managerConfig("messages", cfg.Messages, signals, logger))
	notifications := realtime.New(client, managerConfig("notifications", cfg.Notifications, signals, logger))

	messageFeed := chat.NewMessageFeed(messages, client, func(message chat.Message) {
		logger.Info("message",
			"kind", message.Kind,
			"room_id", message.RoomID,
			"event_id", message.EventID,
			"sender", message.Sender,
		)
	}, logger)
	for _, room := range cfg.Rooms {
		messageFeed.Follow(room)
	}
	notificationFeed := chat.NewNotificationFeed(notifications, client, current.UserID, chat.NotificationHandlers{
		OnMention: func(message chat.Message) {
			logger.Info("mentioned",
				"room_id", message.RoomID,
				"event_id", message.EventID,
				"sender", message.Sender,
			)
		},
		OnPresence: func(presence chat.Presence) {
			logger.Debug("presence",
				"user_id", presence.UserID,
				"state", presence.State,
				"currently_active", presence.CurrentlyActive,
			)
		},
	}, logger)
	notificationFeed.Register()

	controlServer, err := control.NewServer(cfg.Paths.ControlSocket, signals,
		[]*realtime.Manager{messages, notifications}, logger)
	if err != nil {
		return err
	}
	prober, err := transport.NewProber(transport.ProberConfig{
		Homeserver: homeserver,
		Signals:    signals,
		Interval:   cfg.Transport.ProbeInterval,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	stopMessages := messages.Start()
	defer stopMessages()
	stopNotifications := notifications.Start()
	defer stopNotifications()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := controlServer.Serve(ctx); err != nil {
			return fmt.Errorf("control socket: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return prober.Run(ctx)
	})
	group.Go(func() error {
		return sessions.Watch(ctx, func(updated *session.Session) {
			logger.Info("session replaced on disk", "session", updated)
			if updated.UserID != current.UserID {
				logger.Warn("session now belongs to a different user; restart to follow its notifications",
					"user_id", updated.UserID,
				)
			}
			reviveDormant(messages, logger)
			reviveDormant(notifications, logger)
		})
	})

	select {
	case <-controlServer.Ready():
		logger.Info("huddle-realtime ready",
			"control_socket", cfg.Paths.ControlSocket,
			"rooms", len(cfg.Rooms),
		)
	case <-ctx.Done():
	}

	err = group.Wait()
	logger.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// reviveDormant reconnects the topics of manager that spent their
// retry budget, typically on a session that has since been replaced.
func reviveDormant(manager *realtime.Manager, logger *slog.Logger) {
	for _, status := range manager.Snapshot() {
		if !status.Dormant {
			continue
		}
		logger.Info("reconnecting dormant topic", "manager", manager.Name(), "topic", status.Topic)
		manager.ReconnectChannel(status.Topic)
	}
}

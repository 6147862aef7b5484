// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// lumen-monitor is a terminal UI showing a live Matrix event feed: a
// scrolling pane of dispatched events and a status bar with the sync
// cursor, tracked room count and batch count. Quit with q or ctrl+c.
//
// Configuration comes from a YAML file named by the LUMEN_CONFIG
// environment variable or the --config flag.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/lumen-chat/lumen/dispatch"
	"github.com/lumen-chat/lumen/lib/config"
	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lumen-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var since string

	flagSet := pflag.NewFlagSet("lumen-monitor", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (overrides "+config.EnvVar+")")
	flagSet.StringVar(&since, "since", "", "sync cursor to resume from (default: initial sync)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	path, err := config.Path(configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	token, err := cfg.ReadAccessToken()
	if err != nil {
		return err
	}
	userID, err := ref.ParseUserID(cfg.UserID)
	if err != nil {
		return fmt.Errorf("config user_id: %w", err)
	}

	// The TUI owns the terminal; log records would corrupt it.
	logger := slog.New(slog.DiscardHandler)

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	session, err := client.SessionFromToken(userID, token)
	if err != nil {
		return err
	}
	tracker := messaging.NewRoomTracker(session)

	program := tea.NewProgram(newModel(userID), tea.WithAltScreen())

	registry := dispatch.NewRegistry()
	if err := registerFeedHandlers(registry, program); err != nil {
		return err
	}
	dispatcher, err := dispatch.New(dispatch.Config{
		Registry: registry,
		Session:  session,
		Rooms:    tracker,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	syncer, err := messaging.NewSyncer(messaging.SyncerConfig{
		Session: session,
		Sink: &statusSink{
			inner:   dispatcher,
			tracker: tracker,
			program: program,
		},
		Since:     since,
		TimeoutMS: cfg.SyncTimeoutMS,
		Filter:    cfg.Filter,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			program.Send(syncFailedMsg{err: err})
		}
	}()

	_, err = program.Run()
	return err
}

// statusSink dispatches each batch, then reports the new cursor and
// room count to the TUI.
type statusSink struct {
	inner   *dispatch.Dispatcher
	tracker *messaging.RoomTracker
	program *tea.Program
}

func (s *statusSink) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	s.inner.HandleSync(ctx, response)
	s.program.Send(batchMsg{
		cursor: response.NextBatch,
		rooms:  s.tracker.Len(),
	})
}

func registerFeedHandlers(registry *dispatch.Registry, program *tea.Program) error {
	send := func(line string) {
		program.Send(feedLineMsg{line: line})
	}

	type messageEvent struct {
		Sender  ref.UserID `json:"sender"`
		Content struct {
			Body string `json:"body"`
		} `json:"content"`
	}
	if _, err := dispatch.OnRoomEvent(registry, "m.room.message",
		func(ctx context.Context, rctx dispatch.RoomContext, event messageEvent) error {
			send(fmt.Sprintf("%s  <%s> %s", rctx.Room.ID(), event.Sender, event.Content.Body))
			return nil
		}); err != nil {
		return err
	}

	type memberEvent struct {
		StateKey string `json:"state_key"`
		Content  struct {
			Membership string `json:"membership"`
		} `json:"content"`
	}
	if _, err := dispatch.OnRoomEvent(registry, "m.room.member",
		func(ctx context.Context, rctx dispatch.RoomContext, event memberEvent) error {
			send(fmt.Sprintf("%s  %s is now %q", rctx.Room.ID(), event.StateKey, event.Content.Membership))
			return nil
		}); err != nil {
		return err
	}

	type presenceEvent struct {
		Sender  ref.UserID `json:"sender"`
		Content struct {
			Presence string `json:"presence"`
		} `json:"content"`
	}
	if _, err := dispatch.OnGlobalEvent(registry, "m.presence",
		func(ctx context.Context, gctx dispatch.GlobalContext, event presenceEvent) error {
			send(fmt.Sprintf("presence  %s is %s", event.Sender, event.Content.Presence))
			return nil
		}); err != nil {
		return err
	}

	_, err := dispatch.OnCustomEvent(registry,
		func(ctx context.Context, event dispatch.CustomEvent) error {
			where := "account"
			if event.Room != nil {
				where = event.Room.ID().String()
			}
			send(fmt.Sprintf("%s  [%s] %d bytes", where, event.Source, len(event.Raw)))
			return nil
		})
	return err
}

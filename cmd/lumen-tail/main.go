// Copyright 2026 The Lumen Authors
// SPDX-License-Identifier: Apache-2.0

// lumen-tail follows a Matrix account's event stream and prints it as
// human-readable lines. It registers typed handlers for the common
// event types plus a custom-channel handler for everything else, so
// the output shows the full shape of the account's traffic.
//
// With --journal the raw sync batches are also recorded to an
// append-only journal; --replay feeds a recorded journal back through
// the same handlers instead of syncing, reproducing the original
// output deterministically.
//
// Configuration comes from a YAML file named by the LUMEN_CONFIG
// environment variable or the --config flag.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/lumen-chat/lumen/dispatch"
	"github.com/lumen-chat/lumen/journal"
	"github.com/lumen-chat/lumen/lib/config"
	"github.com/lumen-chat/lumen/lib/ref"
	"github.com/lumen-chat/lumen/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lumen-tail: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var since string
	var journalPath string
	var replayPath string

	flagSet := pflag.NewFlagSet("lumen-tail", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (overrides "+config.EnvVar+")")
	flagSet.StringVar(&since, "since", "", "sync cursor to resume from (default: initial sync)")
	flagSet.StringVar(&journalPath, "journal", "", "record sync batches to this file (default: <journal_dir>/sync.journal when configured)")
	flagSet.StringVar(&replayPath, "replay", "", "replay a recorded journal instead of syncing")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	logger := newLogger()

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

	registry := dispatch.NewRegistry()
	if err := registerHandlers(registry); err != nil {
		return err
	}

	tracker := messaging.NewRoomTracker(session)
	dispatcher, err := dispatch.New(dispatch.Config{
		Registry: registry,
		Session:  session,
		Rooms:    tracker,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if replayPath != "" {
		replayed, err := journal.Replay(ctx, replayPath, dispatcher)
		if err != nil {
			return fmt.Errorf("after %d batches: %w", replayed, err)
		}
		logger.Info("replay complete", "batches", replayed)
		return nil
	}

	// The journal sink needs the syncer's cursor and the syncer needs
	// its sink at construction; the indirection breaks the cycle.
	sink := &switchableSink{inner: dispatcher}
	syncer, err := messaging.NewSyncer(messaging.SyncerConfig{
		Session:   session,
		Sink:      sink,
		Since:     since,
		TimeoutMS: cfg.SyncTimeoutMS,
		Filter:    cfg.Filter,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if journalPath == "" && cfg.JournalDir != "" {
		journalPath = filepath.Join(cfg.JournalDir, "sync.journal")
	}
	if journalPath != "" {
		writer, err := journal.Create(journalPath)
		if err != nil {
			return err
		}
		defer writer.Close()
		sink.inner = journal.NewSink(writer, dispatcher, syncer.Since, logger)
		logger.Info("journaling sync batches", "path", journalPath)
	}

	logger.Info("following event stream", "user_id", userID, "homeserver", cfg.Homeserver)
	if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Printf("stopped at cursor %s\n", syncer.Since())
	return nil
}

// switchableSink forwards batches to whatever inner sink is installed
// before the sync loop starts.
type switchableSink struct {
	inner messaging.BatchSink
}

func (s *switchableSink) HandleSync(ctx context.Context, response *messaging.SyncResponse) {
	s.inner.HandleSync(ctx, response)
}

// newLogger writes human-friendly text to a terminal and JSON records
// otherwise, so piped output stays machine-parseable.
func newLogger() *slog.Logger {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

type messageEvent struct {
	Sender  ref.UserID `json:"sender"`
	Content struct {
		MsgType string `json:"msgtype"`
		Body    string `json:"body"`
	} `json:"content"`
}

type memberEvent struct {
	Sender   ref.UserID `json:"sender"`
	StateKey string     `json:"state_key"`
	Content  struct {
		Membership  string `json:"membership"`
		DisplayName string `json:"displayname"`
	} `json:"content"`
}

type nameEvent struct {
	Content struct {
		Name string `json:"name"`
	} `json:"content"`
}

type typingEvent struct {
	Content struct {
		UserIDs []ref.UserID `json:"user_ids"`
	} `json:"content"`
}

type presenceEvent struct {
	Sender  ref.UserID `json:"sender"`
	Content struct {
		Presence string `json:"presence"`
	} `json:"content"`
}

func registerHandlers(registry *dispatch.Registry) error {
	_, err := dispatch.OnRoomEvent(registry, "m.room.message",
		func(ctx context.Context, rctx dispatch.RoomContext, event messageEvent) error {
			fmt.Printf("%s  <%s> %s\n", rctx.Room.ID(), event.Sender, event.Content.Body)
			return nil
		})
	if err != nil {
		return err
	}

	_, err = dispatch.OnRoomEvent(registry, "m.room.member",
		func(ctx context.Context, rctx dispatch.RoomContext, event memberEvent) error {
			fmt.Printf("%s  %s is now %q\n", rctx.Room.ID(), event.StateKey, event.Content.Membership)
			return nil
		})
	if err != nil {
		return err
	}

	_, err = dispatch.OnRoomEvent(registry, "m.room.name",
		func(ctx context.Context, rctx dispatch.RoomContext, event nameEvent) error {
			fmt.Printf("%s  room renamed to %q\n", rctx.Room.ID(), event.Content.Name)
			return nil
		})
	if err != nil {
		return err
	}

	_, err = dispatch.OnRoomEvent(registry, "m.typing",
		func(ctx context.Context, rctx dispatch.RoomContext, event typingEvent) error {
			if len(event.Content.UserIDs) > 0 {
				fmt.Printf("%s  typing: %v\n", rctx.Room.ID(), event.Content.UserIDs)
			}
			return nil
		})
	if err != nil {
		return err
	}

	_, err = dispatch.OnGlobalEvent(registry, "m.presence",
		func(ctx context.Context, gctx dispatch.GlobalContext, event presenceEvent) error {
			fmt.Printf("presence  %s is %s\n", event.Sender, event.Content.Presence)
			return nil
		})
	if err != nil {
		return err
	}

	_, err = dispatch.OnCustomEvent(registry,
		func(ctx context.Context, event dispatch.CustomEvent) error {
			where := "account"
			if event.Room != nil {
				where = event.Room.ID().String()
			}
			fmt.Printf("%s  [%s] %s\n", where, event.Source, event.Raw)
			return nil
		})
	return err
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/events"
	"github.com/jeranaias/compras-tui/internal/logging"
)

// openBus opens the broadcast bus without touching the session.
func (e *Env) openBus(args Args) (*events.Bus, zerolog.Logger, error) {
	cfg, err := e.loadConfigFor(args)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.ForCLI(cfg, e.Err, args.Verbose, args.Quiet)
	bus, err := events.Open(cfg.Storage.RuntimeDir, log)
	if err != nil {
		return nil, log, &CommandError{Command: args.Name, Action: "open broadcast bus", Err: err}
	}
	return bus, log, nil
}

// HandleNotify publishes one message, by default "update" on
// processo-update, so open TUIs reload.
func HandleNotify(ctx context.Context, env *Env, args Args) error {
	p := args.Parser()
	topic := p.Positional(0)
	if topic == "" {
		topic = events.TopicProcessoUpdate
	}
	data := p.FlagOrDefault("data", "update")

	bus, log, err := env.openBus(args)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close broadcast bus")
		}
	}()

	if err := bus.Publish(topic, data); err != nil {
		return &ValidationError{Field: "topic", Value: topic, Reason: err.Error(), Example: events.TopicProcessoUpdate}
	}

	if args.JSON {
		return NewJSONResponse("notify", NotifyData{Topic: topic, Origin: bus.Origin()}).Print(env.Out)
	}
	fmt.Fprintf(env.Out, "%s Published %s\n", SuccessStyle.Render("[OK]"), topic)
	return nil
}

// HandleWatch prints messages as they arrive until ctx ends or --count
// messages were seen. With --json each message is one JSON line.
func HandleWatch(ctx context.Context, env *Env, args Args) error {
	p := args.Parser()
	topic := p.Positional(0)
	if topic == "" {
		topic = events.TopicAll
	}
	limit, err := p.FlagInt("count")
	if err != nil && p.HasFlag("count") {
		return &ValidationError{Field: "count", Value: p.Flag("count"), Reason: "must be a number", Example: "--count 1"}
	}

	bus, log, err := env.openBus(args)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := bus.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close broadcast bus")
		}
	}()

	msgs := make(chan events.Message, 64)
	unsubscribe := bus.Subscribe(topic, func(m events.Message) {
		select {
		case msgs <- m:
		default:
			log.Warn().Str("id", m.ID).Msg("watch output behind, dropping message")
		}
	})
	defer unsubscribe()

	if !args.JSON && !args.Quiet {
		fmt.Fprintln(env.Err, DimStyle.Render("Watching "+bus.Dir()+" (Ctrl+C to stop)"))
	}

	enc := json.NewEncoder(env.Out)
	for seen := 0; limit <= 0 || seen < limit; seen++ {
		select {
		case <-ctx.Done():
			return nil
		case m := <-msgs:
			if args.JSON {
				if err := enc.Encode(m); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(env.Out, "%s  %s  %s\n",
				DimStyle.Render(m.SentAt.Local().Format("15:04:05")),
				TitleStyle.Render(m.Topic),
				m.Data)
		}
	}
	return nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events broadcasts small "data changed" notifications between
// compras processes running under the same login.
//
// A message is a tiny JSON file dropped into a shared directory under the
// runtime dir; every open Bus watches that directory with fsnotify and
// hands new messages to its subscribers. Publishing is a single atomic file
// write and never waits for listeners. Old message files are pruned by
// whoever publishes next.
//
// # Usage
//
//	bus, err := events.Open(cfg.Storage.RuntimeDir, log)
//	defer bus.Close()
//	unsubscribe := bus.Subscribe(events.TopicProcessoUpdate, func(m events.Message) { ... })
//	err = bus.Publish(events.TopicProcessoUpdate, "update")
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/compras-tui/internal/util"
)

// TopicProcessoUpdate is published after a processo changes.
const TopicProcessoUpdate = "processo-update"

// TopicAll subscribes to every topic.
const TopicAll = "*"

const (
	// dirName is the broadcast directory inside the runtime dir
	dirName = "events"

	// msgSuffix marks complete message files; temp files never carry it
	msgSuffix = ".msg"

	// DefaultRetention is how long message files are kept
	DefaultRetention = 30 * time.Second

	// seenLimit bounds the duplicate-suppression window
	seenLimit = 256
)

var topicPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

// ErrInvalidTopic is returned for empty or malformed topic names.
var ErrInvalidTopic = errors.New("invalid topic")

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus closed")

// Message is one broadcast notification.
type Message struct {
	ID     string    `json:"id"`
	Topic  string    `json:"topic"`
	Data   string    `json:"data,omitempty"`
	Origin string    `json:"origin"`
	SentAt time.Time `json:"sent_at"`
}

// =============================================================================
// BUS
// =============================================================================

// Bus publishes to and listens on the shared broadcast directory.
type Bus struct {
	dir       string
	origin    string
	retention time.Duration
	log       zerolog.Logger
	watcher   *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	subs    map[int]subscription
	nextSub int
	seen    map[string]struct{}
	order   []string
	closed  bool
}

type subscription struct {
	topic string
	fn    func(Message)
}

// Open starts a bus on <runtimeDir>/events.
func Open(runtimeDir string, log zerolog.Logger) (*Bus, error) {
	if runtimeDir == "" {
		return nil, errors.New("runtime directory is required")
	}
	dir := filepath.Join(runtimeDir, dirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create broadcast directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		dir:       dir,
		origin:    uuid.NewString(),
		retention: DefaultRetention,
		log:       log.With().Str("component", "events").Logger(),
		watcher:   watcher,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		subs:      make(map[int]subscription),
		seen:      make(map[string]struct{}),
	}
	go b.processEvents()
	return b, nil
}

// WithRetention overrides how long message files are kept.
func (b *Bus) WithRetention(d time.Duration) *Bus {
	if d > 0 {
		b.retention = d
	}
	return b
}

// Origin identifies this bus in the messages it publishes.
func (b *Bus) Origin() string {
	return b.origin
}

// Dir returns the watched directory.
func (b *Bus) Dir() string {
	return b.dir
}

// Close stops watching. Subscribers receive nothing afterwards.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	err := b.watcher.Close()
	<-b.done
	return err
}

// =============================================================================
// PUBLISH / SUBSCRIBE
// =============================================================================

// Publish broadcasts data on topic to every bus watching the directory,
// this one included.
func (b *Bus) Publish(topic, data string) error {
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	msg := Message{
		ID:     uuid.NewString(),
		Topic:  topic,
		Data:   data,
		Origin: b.origin,
		SentAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%d-%s%s", msg.SentAt.UnixNano(), msg.ID, msgSuffix)
	if err := util.AtomicWriteFile(filepath.Join(b.dir, name), raw, 0o600); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	b.log.Debug().Str("topic", topic).Str("id", msg.ID).Msg("published")

	b.prune()
	return nil
}

// Subscribe registers fn for messages on topic (TopicAll for every topic)
// and returns a function that removes it. fn runs on the bus goroutine.
func (b *Bus) Subscribe(topic string, fn func(Message)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = subscription{topic: topic, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// =============================================================================
// WATCH LOOP
// =============================================================================

func (b *Bus) processEvents() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return

		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, msgSuffix) {
				continue
			}
			b.handleFile(event.Name)

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (b *Bus) handleFile(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		// pruned before we got to it
		return
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil || msg.ID == "" {
		b.log.Debug().Str("file", filepath.Base(path)).Msg("ignoring malformed message")
		return
	}

	b.mu.Lock()
	if _, dup := b.seen[msg.ID]; dup {
		b.mu.Unlock()
		return
	}
	b.rememberLocked(msg.ID)
	var targets []func(Message)
	for _, s := range b.subs {
		if s.topic == TopicAll || s.topic == msg.Topic {
			targets = append(targets, s.fn)
		}
	}
	b.mu.Unlock()

	// Execute callbacks outside lock
	for _, fn := range targets {
		fn(msg)
	}
}

func (b *Bus) rememberLocked(id string) {
	b.seen[id] = struct{}{}
	b.order = append(b.order, id)
	if len(b.order) > seenLimit {
		delete(b.seen, b.order[0])
		b.order = b.order[1:]
	}
}

// prune removes message files older than the retention window.
func (b *Bus) prune() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-b.retention)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), msgSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := util.RemoveIfExists(filepath.Join(b.dir, e.Name())); err != nil {
			b.log.Debug().Err(err).Str("file", e.Name()).Msg("prune failed")
		}
	}
}

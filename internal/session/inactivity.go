// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// Inactivity defaults.
const (
	// DefaultInactivityTimeout is the quiet period before the warning opens.
	DefaultInactivityTimeout = 10 * time.Minute

	// DefaultWarningCountdown is the warning length in seconds.
	DefaultWarningCountdown = 60
)

// MonitorState is the state of the inactivity monitor.
type MonitorState int

const (
	// MonitorStopped means no session is being watched.
	MonitorStopped MonitorState = iota
	// MonitorWatching means the deadline timer is armed.
	MonitorWatching
	// MonitorWarning means the warning is open and the countdown runs.
	MonitorWarning
)

// String returns a string representation of the MonitorState.
func (s MonitorState) String() string {
	switch s {
	case MonitorStopped:
		return "STOPPED"
	case MonitorWatching:
		return "WATCHING"
	case MonitorWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// MonitorConfig holds configuration for the inactivity monitor.
type MonitorConfig struct {
	// Timeout is the quiet period before the warning (default: 10 minutes)
	Timeout time.Duration

	// Countdown is the warning length in seconds (default: 60)
	Countdown int

	// Clock schedules timers (default: SystemClock)
	Clock Clock
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor ends abandoned sessions. Activity re-arms a single deadline
// timer; when it fires the warning opens and a one-second countdown runs.
// Continue closes the warning; reaching zero calls the expire callback once.
//
// Every re-arm bumps a generation number and stale timer callbacks compare
// generations, so the most recent activity always wins.
type Monitor struct {
	mu sync.Mutex

	clock     Clock
	timeout   time.Duration
	start     int
	state     MonitorState
	countdown int
	gen       uint64

	deadline Timer
	tick     Timer

	// Callbacks
	onChange func()
	onExpire func()
}

// NewMonitor creates a stopped monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultInactivityTimeout
	}
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultWarningCountdown
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	return &Monitor{
		clock:     cfg.Clock,
		timeout:   cfg.Timeout,
		start:     cfg.Countdown,
		countdown: cfg.Countdown,
	}
}

// SetChangeCallback sets the function called when the warning opens,
// ticks or closes.
func (m *Monitor) SetChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// SetExpireCallback sets the function called when the countdown reaches zero.
func (m *Monitor) SetExpireCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// =============================================================================
// STATE
// =============================================================================

// State returns the current monitor state.
func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// WarningOpen reports whether the warning is showing.
func (m *Monitor) WarningOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == MonitorWarning
}

// Countdown returns the seconds left on the warning.
func (m *Monitor) Countdown() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countdown
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Start begins watching. Calling Start while watching re-arms the deadline;
// calling it while the warning is open does nothing.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == MonitorWarning {
		return
	}
	m.state = MonitorWatching
	m.armLocked()
}

// Activity records user interaction. It re-arms the deadline while
// watching and is ignored otherwise: an open warning only closes through
// Continue.
func (m *Monitor) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MonitorWatching {
		return
	}
	m.armLocked()
}

// Continue closes an open warning, resets the countdown and re-arms the
// deadline. It reports whether a warning was open.
func (m *Monitor) Continue() bool {
	m.mu.Lock()
	if m.state != MonitorWarning {
		m.mu.Unlock()
		return false
	}
	m.state = MonitorWatching
	m.countdown = m.start
	m.armLocked()
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange()
	}
	return true
}

// Stop clears every timer and closes the warning.
func (m *Monitor) Stop() {
	m.mu.Lock()
	wasWarning := m.state == MonitorWarning
	m.stopTimersLocked()
	m.gen++
	m.state = MonitorStopped
	m.countdown = m.start
	onChange := m.onChange
	m.mu.Unlock()

	if wasWarning && onChange != nil {
		onChange()
	}
}

// armLocked replaces the deadline timer. Caller holds mu.
func (m *Monitor) armLocked() {
	m.stopTimersLocked()
	m.gen++
	gen := m.gen
	m.deadline = m.clock.AfterFunc(m.timeout, func() { m.fire(gen) })
}

func (m *Monitor) stopTimersLocked() {
	if m.deadline != nil {
		m.deadline.Stop()
		m.deadline = nil
	}
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
}

// fire opens the warning when the deadline elapses.
func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != MonitorWatching {
		m.mu.Unlock()
		return
	}
	m.state = MonitorWarning
	m.countdown = m.start
	m.deadline = nil
	m.scheduleTickLocked(gen)
	onChange := m.onChange
	m.mu.Unlock()

	// Execute callbacks outside lock
	if onChange != nil {
		onChange()
	}
}

func (m *Monitor) scheduleTickLocked(gen uint64) {
	m.tick = m.clock.AfterFunc(time.Second, func() { m.step(gen) })
}

// step advances the countdown by one second.
func (m *Monitor) step(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != MonitorWarning {
		m.mu.Unlock()
		return
	}

	if m.countdown <= 1 {
		m.countdown = 0
		m.tick = nil
		m.gen++
		m.state = MonitorStopped
		onExpire := m.onExpire
		onChange := m.onChange
		m.mu.Unlock()

		if onChange != nil {
			onChange()
		}
		if onExpire != nil {
			onExpire()
		}
		return
	}

	m.countdown--
	m.scheduleTickLocked(gen)
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange()
	}
}

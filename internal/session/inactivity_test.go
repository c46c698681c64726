// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor() (*Monitor, *fakeClock, *int32, *int32) {
	clock := newFakeClock()
	m := NewMonitor(MonitorConfig{Clock: clock})
	var opened, expired int32
	m.SetChangeCallback(func() {
		if m.WarningOpen() && m.Countdown() == DefaultWarningCountdown {
			atomic.AddInt32(&opened, 1)
		}
	})
	m.SetExpireCallback(func() { atomic.AddInt32(&expired, 1) })
	return m, clock, &opened, &expired
}

func TestNewMonitor_Defaults(t *testing.T) {
	m := NewMonitor(MonitorConfig{})
	assert.Equal(t, MonitorStopped, m.State())
	assert.Equal(t, 60, m.Countdown())
	assert.Equal(t, DefaultInactivityTimeout, m.timeout)
	assert.Equal(t, "STOPPED", m.State().String())
}

func TestMonitor_ActivityKeepsWarningClosed(t *testing.T) {
	m, clock, opened, _ := newTestMonitor()
	m.Start()

	for i := 0; i < 20; i++ {
		clock.Advance(9*time.Minute + 59*time.Second)
		m.Activity()
	}

	assert.False(t, m.WarningOpen())
	assert.Equal(t, int32(0), atomic.LoadInt32(opened))
	assert.Equal(t, 1, clock.Active(), "exactly one deadline armed")
}

func TestMonitor_WarningOpensOnceAfterQuietPeriod(t *testing.T) {
	m, clock, opened, _ := newTestMonitor()
	m.Start()

	clock.Advance(10*time.Minute - time.Second)
	assert.False(t, m.WarningOpen())

	clock.Advance(time.Second)
	require.True(t, m.WarningOpen())
	assert.Equal(t, 60, m.Countdown())
	assert.Equal(t, MonitorWarning, m.State())

	clock.Advance(30 * time.Second)
	assert.Equal(t, 30, m.Countdown())
	assert.Equal(t, int32(1), atomic.LoadInt32(opened))
}

func TestMonitor_ContinueKeepsSession(t *testing.T) {
	m, clock, _, expired := newTestMonitor()
	m.Start()

	clock.Advance(10*time.Minute + 45*time.Second)
	require.True(t, m.WarningOpen())
	require.Equal(t, 15, m.Countdown())

	assert.True(t, m.Continue())
	assert.False(t, m.WarningOpen())
	assert.Equal(t, 60, m.Countdown())
	assert.False(t, m.Continue(), "nothing to continue")

	clock.Advance(5 * time.Minute)
	assert.Equal(t, int32(0), atomic.LoadInt32(expired))
	assert.False(t, m.WarningOpen())

	// the deadline was restarted, not cancelled
	clock.Advance(5 * time.Minute)
	assert.True(t, m.WarningOpen())
}

func TestMonitor_CountdownExpiresOnce(t *testing.T) {
	m, clock, _, expired := newTestMonitor()
	m.Start()

	clock.Advance(10*time.Minute + 59*time.Second)
	require.Equal(t, 1, m.Countdown())
	assert.Equal(t, int32(0), atomic.LoadInt32(expired))

	clock.Advance(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(expired))
	assert.Equal(t, 0, m.Countdown())
	assert.False(t, m.WarningOpen())

	clock.Advance(time.Hour)
	assert.Equal(t, int32(1), atomic.LoadInt32(expired))
	assert.Equal(t, 0, clock.Active())
}

func TestMonitor_ActivityIgnoredDuringWarning(t *testing.T) {
	m, clock, _, expired := newTestMonitor()
	m.Start()
	clock.Advance(10 * time.Minute)
	require.True(t, m.WarningOpen())

	for i := 0; i < 10; i++ {
		m.Activity()
		m.Start()
		clock.Advance(time.Second)
	}
	assert.True(t, m.WarningOpen(), "only Continue closes the warning")
	assert.Equal(t, 50, m.Countdown())

	clock.Advance(50 * time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(expired))
}

func TestMonitor_StopClearsTimers(t *testing.T) {
	m, clock, opened, expired := newTestMonitor()
	m.Start()
	clock.Advance(10*time.Minute + 10*time.Second)
	require.True(t, m.WarningOpen())

	m.Stop()
	assert.Equal(t, MonitorStopped, m.State())
	assert.Equal(t, 60, m.Countdown())
	assert.Equal(t, 0, clock.Active())

	clock.Advance(time.Hour)
	assert.Equal(t, int32(1), atomic.LoadInt32(opened))
	assert.Equal(t, int32(0), atomic.LoadInt32(expired))

	m.Activity()
	assert.Equal(t, 0, clock.Active(), "activity does not arm a stopped monitor")
}

func TestMonitor_StaleTimerIgnored(t *testing.T) {
	clock := newFakeClock()
	m := NewMonitor(MonitorConfig{Clock: clock, Timeout: time.Minute, Countdown: 5})
	m.Start()

	// a timer callback captured before a re-arm must not open the warning
	gen := m.gen
	m.Activity()
	m.fire(gen)
	assert.False(t, m.WarningOpen())
}

func TestMonitor_SystemClock(t *testing.T) {
	m := NewMonitor(MonitorConfig{Timeout: 20 * time.Millisecond, Countdown: 1})
	var expired int32
	m.SetExpireCallback(func() { atomic.AddInt32(&expired, 1) })
	m.Start()
	defer m.Stop()

	require.Eventually(t, m.WarningOpen, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&expired) == 1 }, 3*time.Second, 10*time.Millisecond)
}

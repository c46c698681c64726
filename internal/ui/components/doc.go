// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the UI building blocks of the compras TUI:
// the login form, the company picker, the processo list, the status bar
// and the inactivity overlay.
//
// Components are plain values with Update/View methods in the Bubble Tea
// style. They hold no session state of their own; the shell model feeds
// them snapshots and turns their results into session calls.
package components

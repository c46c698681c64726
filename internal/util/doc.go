// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the compras packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - RemoveIfExists: delete that tolerates a missing file
//
// Display:
//   - TruncateWidth, PadRight: cell-aware truncation and padding
package util

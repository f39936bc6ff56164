// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across assetdesk.
//
// # File Operations
//
//   - AtomicWriteFile, AtomicWriteFileWithDir: crash-safe writes (temp file,
//     fsync, rename) used for the config file and key material
//
// # Display
//
//   - TruncateWidth, PadRight, StringWidth: column-aware string layout for
//     asset tables, backed by go-runewidth
//   - CeilMinutes, Plural: retry-after messages ("try again in 3 minutes")
package util

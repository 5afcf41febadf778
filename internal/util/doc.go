// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the storage and terminal code.
//
// # Key Functions
//
//   - WriteFileAtomic: crash-safe file writing with fsync and rename
//   - TruncateWidth: display-width aware truncation for CJK text
//   - Preview: one-line preview of a multi-line message
//   - MaskSecret: redacted form of a credential for display
//   - OpenInBrowser: launch the system browser on a URL
//
// # Usage
//
//	err := util.WriteFileAtomic(path, data, 0600, 0700)
//	line := util.Preview(msg.RawText, 60)
package util

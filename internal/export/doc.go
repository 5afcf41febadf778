// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a chat transcript to a file.
//
// Transcripts live only in memory; export is the one way to keep one.
//
// # Key Types
//
//   - Transcript: the messages of one session plus a title and model
//   - Exporter: format interface (HTML, Markdown, JSON)
//   - Options: export configuration options
//
// # Supported Formats
//
//   - HTML: standalone page, rendered replies with highlighted code
//   - Markdown: the raw message text
//   - JSON: the full message structures
//
// # Usage
//
//	t := export.NewTranscript(session.Messages(), client.Model())
//	err := export.ToFile(t, "chat.html", export.DefaultOptions())
package export

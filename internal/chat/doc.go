// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs one conversation panel: it sends each user message to
// the completion endpoint, renders the streamed reply as it grows and
// reports failures as system messages.
//
// # Key Types
//
//   - Session: per-panel state machine (Idle, Sending, Streaming, Completed, Failed)
//   - Message: a user, assistant or system bubble
//   - Display: where a session shows its messages (browser panel, terminal)
//   - Completer, Highlighter, Prompter: collaborators supplied by the caller
//
// # Usage
//
//	session := chat.NewSession(client, store).
//	    WithRenderer(markdown.NewRenderer(loc.T(i18n.CopyLabel))).
//	    WithHighlighter(highlight.New("monokai")).
//	    WithPrompter(prompter).
//	    WithLocalizer(loc)
//	msg, err := session.Send(ctx, "Explain channels", display)
//
// Each delta re-renders the whole accumulated reply, so the HTML a display
// receives is always Render(RawText). Highlighting happens once, after the
// stream ends, and is handed to Display.Finalize separately.
package chat

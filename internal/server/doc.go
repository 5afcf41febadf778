// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server hosts the chat panel on a loopback address.
//
// The browser side of the panel is a small embedded page. Every websocket
// connection gets its own chat.Session, so two open panels are two
// independent conversations.
//
// # Endpoints
//
//   - GET /              - Panel page
//   - GET /static/*      - Panel script and stylesheet
//   - GET /highlight.css - Stylesheet for the configured highlight style
//   - GET /health        - Health check
//   - GET /ws            - Panel websocket
//
// # Frames
//
// Every websocket frame is a JSON object with a "type" field.
//
// Panel to host: send{text}, set_key{key}, cancel, copy{message_id, block},
// clear.
//
// Host to panel: hello{locale, labels, max_input_height}, message{message},
// finalize{message, html}, discard{message}, state{state}, need_key{prompt},
// copy_state{message_id, block, label}, error{text}.
//
// # Usage
//
//	srv := server.New(cfg, client, store).WithHighlighter(highlight.New(cfg.UI.HighlightStyle))
//	if err := srv.Run(ctx); err != nil {
//		return err
//	}
package server

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the sidechat command tree.
//
// # Commands
//
//   - serve: host the chat panel on a loopback address
//   - chat: interactive terminal chat
//   - ask: one question, one streamed answer
//   - key: set, show or clear the stored API key
//   - config: show, init or locate the config file
//   - version: print version information
//
// Global flags: --config, --log-level, --locale.
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
package cli

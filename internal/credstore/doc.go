// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package credstore persists the API key the chat session authenticates with.
//
// Every backend stores one named credential. Get reports absence with
// ok=false rather than an error, so the session can fall back to prompting.
//
// # Key Types
//
//   - Store: Get/Set/Delete of one named credential
//   - SQLiteStore: row in a local SQLite database (default backend)
//   - FileStore: JSON file with 0600 permissions
//   - MemoryStore: process-local, for tests and --no-store runs
//   - Sealed: wraps any Store and encrypts values with NaCl secretbox
//
// # Usage
//
//	store, err := credstore.Open(credstore.Options{
//	    Backend: credstore.BackendSQLite,
//	    Path:    "~/.sidechat/credentials.db",
//	    Name:    credstore.DefaultName,
//	    Seal:    true,
//	})
//	key, ok, err := store.Get(ctx)
package credstore

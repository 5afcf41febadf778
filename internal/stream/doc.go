// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream decodes the server-sent-events body of a streaming chat
// completion into content deltas.
//
// A Decoder owns the undecoded bytes and the trailing partial line for one
// response. Chunks may split lines and multi-byte UTF-8 sequences anywhere;
// the decoder only acts on complete lines.
//
// # Key Types
//
//   - Decoder: push-based decoder, one per request, not restartable
//   - Event: a content delta, the end-of-stream sentinel, or a parse error
//   - ParseError: a malformed data line, reported and skipped
//
// # Usage
//
// Push bytes as they arrive:
//
//	dec := stream.NewDecoder()
//	for _, ev := range dec.Feed(chunk) {
//	    switch ev.Kind {
//	    case stream.KindDelta:
//	        buf.WriteString(ev.Content)
//	    case stream.KindDone:
//	        return
//	    }
//	}
//
// Or let a goroutine pull from a response body:
//
//	for ev := range stream.Decode(ctx, resp.Body) {
//	    ...
//	}
package stream

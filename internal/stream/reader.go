// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog/log"
)

// ReadChunkSize is the read buffer used by Decode.
const ReadChunkSize = 4096

// Decode reads r on its own goroutine and delivers events in arrival order.
//
// The channel ends after KindDone or KindError and is always closed. A body
// that ends without the sentinel still yields KindDone. When ctx is
// cancelled the goroutine stops without waiting for the consumer.
func Decode(ctx context.Context, r io.Reader) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		send := func(ev Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		dec := NewDecoder()
		buf := make([]byte, ReadChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				for _, ev := range dec.Feed(buf[:n]) {
					if !send(ev) {
						return
					}
				}
				if dec.Halted() {
					return
				}
			}

			if err == nil {
				continue
			}

			dec.Finish()
			switch {
			case errors.Is(err, io.EOF):
				log.Debug().Str("component", "stream").Msg("body ended without [DONE]")
				send(Event{Kind: KindDone})
			case ctx.Err() != nil:
				send(Event{Kind: KindError, Err: ctx.Err()})
			default:
				send(Event{Kind: KindError, Err: err})
			}
			return
		}
	}()

	return out
}

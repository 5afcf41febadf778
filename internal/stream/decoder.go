// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// dataField marks an event-data line.
	dataField = "data:"

	// doneSentinel is the payload that ends the stream.
	doneSentinel = "[DONE]"

	// maxReportedLine bounds how much of a bad line a ParseError keeps.
	maxReportedLine = 256
)

// =============================================================================
// EVENTS
// =============================================================================

// Kind identifies what an Event carries.
type Kind int

const (
	// KindDelta is a non-empty fragment of assistant text.
	KindDelta Kind = iota

	// KindDone is the end-of-stream sentinel.
	KindDone

	// KindParseError is a data line whose payload was not valid JSON.
	// The stream continues after it.
	KindParseError

	// KindError is a transport failure. Only Decode produces it.
	KindError
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindParseError:
		return "parse_error"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one decoded item of a response stream.
type Event struct {
	Kind    Kind
	Content string // set for KindDelta
	Err     error  // set for KindParseError (*ParseError) and KindError
}

// ParseError reports a data line whose payload could not be decoded.
type ParseError struct {
	Line string
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	line := e.Line
	if len(line) > maxReportedLine {
		line = line[:maxReportedLine] + "..."
	}
	return fmt.Sprintf("malformed stream line %q: %v", line, e.Err)
}

// Unwrap returns the underlying JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// completionChunk is the subset of a streamed completion object we read.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// content returns the first choice's delta content, or "".
func (c *completionChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// DECODER
// =============================================================================

// Decoder turns raw response bytes into Events. It is not safe for
// concurrent use; each request gets its own Decoder.
type Decoder struct {
	utf8    transform.Transformer
	pending []byte // incomplete UTF-8 sequence from the previous chunk
	partial string // text after the last newline seen so far
	done    bool
}

// NewDecoder returns a Decoder ready for the first chunk.
func NewDecoder() *Decoder {
	return &Decoder{utf8: unicode.UTF8.NewDecoder()}
}

// Feed decodes one chunk and returns the events completed by it, in order.
// Once the sentinel has been seen, Feed returns nothing.
func (d *Decoder) Feed(chunk []byte) []Event {
	if d.done || len(chunk) == 0 {
		return nil
	}

	d.partial += d.decode(chunk)

	var events []Event
	for !d.done {
		i := strings.IndexByte(d.partial, '\n')
		if i < 0 {
			break
		}
		line := d.partial[:i]
		d.partial = d.partial[i+1:]

		if ev, ok := d.parseLine(line); ok {
			events = append(events, ev)
		}
	}

	if d.done {
		d.partial = ""
		d.pending = nil
	}
	return events
}

// Finish marks the end of input. A buffered partial line is discarded.
func (d *Decoder) Finish() {
	d.done = true
	d.partial = ""
	d.pending = nil
}

// Halted reports whether the decoder has seen the sentinel or been finished.
func (d *Decoder) Halted() bool {
	return d.done
}

// decode converts chunk to text, holding back a trailing incomplete
// multi-byte sequence until the next chunk completes it.
func (d *Decoder) decode(chunk []byte) string {
	src := chunk
	if len(d.pending) > 0 {
		src = append(d.pending, chunk...)
		d.pending = nil
	}

	// Each invalid byte becomes U+FFFD (3 bytes), so 3x always fits.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := d.utf8.Transform(dst, src, false)
	if err == transform.ErrShortSrc {
		d.pending = append([]byte(nil), src[nSrc:]...)
	}
	return string(dst[:nDst])
}

// parseLine interprets one complete line. ok is false for lines that
// produce no event.
func (d *Decoder) parseLine(raw string) (ev Event, ok bool) {
	line := strings.TrimSpace(raw)

	payload, isData := strings.CutPrefix(line, dataField)
	if !isData {
		// Blank separators, comments and other fields.
		return Event{}, false
	}
	payload = strings.TrimPrefix(payload, " ")
	if payload == "" {
		return Event{}, false
	}

	if payload == doneSentinel {
		d.done = true
		return Event{Kind: KindDone}, true
	}

	var c completionChunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Event{Kind: KindParseError, Err: &ParseError{Line: line, Err: err}}, true
	}

	content := c.content()
	if content == "" {
		return Event{}, false
	}
	return Event{Kind: KindDelta, Content: content}, true
}

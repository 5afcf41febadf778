// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package copybutton implements the copy control shown on every code block:
// it extracts the original code text from rendered HTML, writes it to the
// clipboard and shows a transient "copied" or "failed" label that reverts
// after a fixed delay.
package copybutton

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sidechat/internal/markdown"
)

// DefaultRevertDelay is how long the copied/failed label stays visible.
const DefaultRevertDelay = 2000 * time.Millisecond

// ErrNoSuchBlock is returned when a message has fewer code blocks than asked for.
var ErrNoSuchBlock = errors.New("no such code block")

var blockBody = regexp.MustCompile(`<code class="language-[\w-]+">([^<]*)</code>`)

// Count returns the number of fenced code blocks in rendered HTML.
func Count(html string) int {
	return len(blockBody.FindAllStringIndex(html, -1))
}

// Extract returns the source text of the index-th (0-based) code block of
// rendered HTML, with every whitespace entity decoded.
func Extract(html string, index int) (string, error) {
	matches := blockBody.FindAllStringSubmatch(html, -1)
	if index < 0 || index >= len(matches) {
		return "", fmt.Errorf("%w: %d of %d", ErrNoSuchBlock, index, len(matches))
	}
	return markdown.DecodeCode(matches[index][1]), nil
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the OS clipboard.
type SystemClipboard struct{}

// WriteAll implements Clipboard.
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// =============================================================================
// BUTTON
// =============================================================================

// State is the indicator shown on the button.
type State int

const (
	StateIdle State = iota
	StateCopied
	StateFailed
)

// String returns the state name used on the wire.
func (s State) String() string {
	switch s {
	case StateCopied:
		return "copied"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Labels are the button texts for each state.
type Labels struct {
	Copy   string
	Copied string
	Failed string
}

// DefaultLabels are the English labels.
var DefaultLabels = Labels{Copy: "Copy", Copied: "Copied!", Failed: "Copy failed"}

func (l Labels) forState(s State) string {
	switch s {
	case StateCopied:
		return l.Copied
	case StateFailed:
		return l.Failed
	default:
		return l.Copy
	}
}

// Button tracks one copy control. Pressing it again while the indicator is
// showing restarts the revert delay.
type Button struct {
	clipboard Clipboard
	labels    Labels
	delay     time.Duration
	onChange  func(State, string)

	mu    sync.Mutex
	state State
	gen   int
	timer *time.Timer

	// notifyMu orders onChange calls: a revert never reports before the
	// press that armed it.
	notifyMu sync.Mutex
}

// NewButton returns an idle button. onChange, if set, is called with the
// new state and label on every change, including the revert; it runs on
// the timer goroutine for reverts. Calls are serialized in state order, so
// onChange must not call Press.
func NewButton(labels Labels, delay time.Duration, onChange func(State, string)) *Button {
	if delay <= 0 {
		delay = DefaultRevertDelay
	}
	return &Button{
		clipboard: SystemClipboard{},
		labels:    labels,
		delay:     delay,
		onChange:  onChange,
	}
}

// WithClipboard replaces the clipboard writer.
func (b *Button) WithClipboard(c Clipboard) *Button {
	b.clipboard = c
	return b
}

// Press copies text, shows the result and schedules the revert.
// The returned error is the clipboard failure, if any.
func (b *Button) Press(text string) error {
	err := b.clipboard.WriteAll(text)

	next := StateCopied
	if err != nil {
		next = StateFailed
		log.Warn().Err(err).Str("component", "copybutton").Msg("clipboard write failed")
	}

	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.state = next
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.revert(gen) })
	b.mu.Unlock()

	b.notify(next)
	return err
}

// State returns the current state and its label.
func (b *Button) State() (State, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.labels.forState(b.state)
}

// Stop cancels a pending revert without notifying.
func (b *Button) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Button) revert(gen int) {
	b.notifyMu.Lock()
	defer b.notifyMu.Unlock()

	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = StateIdle
	b.timer = nil
	b.mu.Unlock()

	b.notify(StateIdle)
}

func (b *Button) notify(s State) {
	if b.onChange != nil {
		b.onChange(s, b.labels.forState(s))
	}
}

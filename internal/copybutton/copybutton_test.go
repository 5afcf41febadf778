// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package copybutton

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/markdown"
)

// fakeClipboard records writes and can be told to fail.
type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (f *fakeClipboard) WriteAll(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

// recorder collects onChange calls.
type recorder struct {
	mu     sync.Mutex
	labels []string
}

func (r *recorder) record(_ State, label string) {
	r.mu.Lock()
	r.labels = append(r.labels, label)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}

// =============================================================================
// EXTRACTION TESTS
// =============================================================================

func TestExtract(t *testing.T) {
	html := markdown.Render("one:\n```go\n\tif a < b {\n\t\treturn\n\t}\n```\ntwo:\n```\n  x  y\n```")
	require.Equal(t, 2, Count(html))

	first, err := Extract(html, 0)
	require.NoError(t, err)
	require.Equal(t, "if a < b {\n\treturn\n}", first)

	second, err := Extract(html, 1)
	require.NoError(t, err)
	require.Equal(t, "x  y", second)

	_, err = Extract(html, 2)
	require.ErrorIs(t, err, ErrNoSuchBlock)
	_, err = Extract(html, -1)
	require.ErrorIs(t, err, ErrNoSuchBlock)
}

// =============================================================================
// BUTTON TESTS
// =============================================================================

func TestButton_CopiedThenReverts(t *testing.T) {
	clip := &fakeClipboard{}
	rec := &recorder{}
	b := NewButton(DefaultLabels, 20*time.Millisecond, rec.record).WithClipboard(clip)

	require.NoError(t, b.Press("code"))
	require.Equal(t, "code", clip.text)

	state, label := b.State()
	require.Equal(t, StateCopied, state)
	require.Equal(t, "Copied!", label)

	require.Eventually(t, func() bool {
		s, _ := b.State()
		return s == StateIdle
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"Copied!", "Copy"}, rec.snapshot())
}

func TestButton_Failure(t *testing.T) {
	boom := errors.New("no display")
	rec := &recorder{}
	labels := Labels{Copy: "复制", Copied: "已复制!", Failed: "复制失败"}
	b := NewButton(labels, 20*time.Millisecond, rec.record).WithClipboard(&fakeClipboard{err: boom})

	require.ErrorIs(t, b.Press("x"), boom)
	state, label := b.State()
	require.Equal(t, StateFailed, state)
	require.Equal(t, "复制失败", label)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"复制失败", "复制"}, rec.snapshot())
}

func TestButton_RepressRestartsDelay(t *testing.T) {
	rec := &recorder{}
	b := NewButton(DefaultLabels, 50*time.Millisecond, rec.record).WithClipboard(&fakeClipboard{})

	require.NoError(t, b.Press("a"))
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, b.Press("b"))

	require.Eventually(t, func() bool {
		s, _ := b.State()
		return s == StateIdle
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	// Only the second timer reverts.
	require.Equal(t, []string{"Copied!", "Copied!", "Copy"}, rec.snapshot())
}

func TestButton_RevertReportedAfterPress(t *testing.T) {
	rec := &recorder{}
	// The revert fires while the copied notification is still being delivered.
	slow := func(s State, label string) {
		if s == StateCopied {
			time.Sleep(30 * time.Millisecond)
		}
		rec.record(s, label)
	}
	b := NewButton(DefaultLabels, time.Millisecond, slow).WithClipboard(&fakeClipboard{})

	require.NoError(t, b.Press("x"))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"Copied!", "Copy"}, rec.snapshot())
}

func TestButton_ShortDelayEndsIdle(t *testing.T) {
	for i := 0; i < 200; i++ {
		rec := &recorder{}
		b := NewButton(DefaultLabels, time.Nanosecond, rec.record).WithClipboard(&fakeClipboard{})

		require.NoError(t, b.Press("x"))
		require.Eventually(t, func() bool {
			return len(rec.snapshot()) == 2
		}, time.Second, time.Millisecond)
		require.Equal(t, []string{"Copied!", "Copy"}, rec.snapshot())
	}
}

func TestButton_DefaultDelayAndStop(t *testing.T) {
	b := NewButton(DefaultLabels, 0, nil).WithClipboard(&fakeClipboard{})
	require.Equal(t, DefaultRevertDelay, b.delay)

	require.NoError(t, b.Press("x"))
	b.Stop()
	state, _ := b.State()
	require.Equal(t, StateCopied, state)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "copied", StateCopied.String())
	require.Equal(t, "failed", StateFailed.String())
}

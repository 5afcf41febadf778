// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/markdown"
)

func sampleTranscript() *Transcript {
	at := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	reply := "Use this:\n```go\nfmt.Println(\"<hi>\")\n```"
	return NewTranscript([]chat.Message{
		{ID: "1", Role: chat.RoleUser, RawText: "How do I print?", RenderedHTML: markdown.Render("How do I print?"), Complete: true, CreatedAt: at},
		{ID: "2", Role: chat.RoleAssistant, RawText: reply, RenderedHTML: markdown.Render(reply), Complete: true, CreatedAt: at.Add(time.Second)},
	}, "deepseek-chat")
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestNewTranscript(t *testing.T) {
	tr := sampleTranscript()
	require.Equal(t, "How do I print?", tr.Title)
	require.Equal(t, "deepseek-chat", tr.Model)
	require.Equal(t, time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC), tr.CreatedAt)
}

func TestExport_Empty(t *testing.T) {
	for _, e := range []Exporter{NewHTMLExporter(nil), NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		_, err := e.Export(NewTranscript(nil, ""))
		require.True(t, errors.Is(err, ErrEmptyTranscript))
	}
}

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestHTMLExporter(t *testing.T) {
	out, err := NewHTMLExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	page := string(out)

	require.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	require.Contains(t, page, "<title>How do I print?</title>")
	require.Contains(t, page, `class="dark-theme"`)
	require.Contains(t, page, "language-go chroma")
	require.Contains(t, page, ".chroma")
	require.NotContains(t, page, "copy-button\">")
	require.NotContains(t, page, "<hi>")
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	require.Contains(t, md, "# How do I print?")
	require.Contains(t, md, "- **Model**: deepseek-chat")
	require.Contains(t, md, "## You *(09:30:00)*")
	require.Contains(t, md, "```go\nfmt.Println(\"<hi>\")\n```")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	var back Transcript
	require.NoError(t, json.Unmarshal(out, &back))
	require.Len(t, back.Messages, 2)
	require.Equal(t, chat.RoleAssistant, back.Messages[1].Role)
}

// =============================================================================
// FILE TESTS
// =============================================================================

func TestToFile_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		file   string
		want   string
		prefix string
	}{
		{"markdown", "chat.md", "chat.md", "# "},
		{"json", "chat.json", "chat.json", "{"},
		{"html", "chat.html", "chat.html", "<!DOCTYPE html>"},
		{"no extension", "chat", "chat.html", "<!DOCTYPE html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ToFile(sampleTranscript(), filepath.Join(dir, tt.file), nil)
			require.NoError(t, err)
			require.Equal(t, filepath.Join(dir, tt.want), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(string(data), tt.prefix))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"How do I print?", "How_do_I_print-"},
		{"a/b\\c:d", "a-b-c-d"},
		{"", "conversation"},
		{strings.Repeat("x", 100), strings.Repeat("x", 40)},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}

func TestDefaultFilename(t *testing.T) {
	name := DefaultFilename(sampleTranscript(), ".md")
	require.True(t, strings.HasPrefix(name, "sidechat_How_do_I_print-_"))
	require.True(t, strings.HasSuffix(name, ".md"))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is what gets exported.
type Transcript struct {
	Title     string         `json:"title"`
	Model     string         `json:"model"`
	CreatedAt time.Time      `json:"created_at"`
	Messages  []chat.Message `json:"messages"`
}

// NewTranscript builds a Transcript titled after the first user message.
func NewTranscript(messages []chat.Message, model string) *Transcript {
	t := &Transcript{
		Title:     "sidechat conversation",
		Model:     model,
		CreatedAt: time.Now(),
		Messages:  messages,
	}
	for _, m := range messages {
		if m.Role == chat.RoleUser {
			t.Title = util.Preview(m.RawText, 60)
			break
		}
	}
	if len(messages) > 0 {
		t.CreatedAt = messages[0].CreatedAt
	}
	return t
}

func (t *Transcript) validate() error {
	if t == nil || len(t.Messages) == 0 {
		return ErrEmptyTranscript
	}
	return nil
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a transcript to one format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)
	FileExtension() string
	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// Theme for HTML export ("light" or "dark").
	Theme string

	// HighlightStyle is the chroma style for HTML code blocks.
	HighlightStyle string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeTimestamps: true,
		Theme:             "dark",
		HighlightStyle:    "monokai",
	}
}

// ForPath picks the exporter matching the extension of path. Unknown
// extensions get HTML.
func ForPath(path string, opts *Options) Exporter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdownExporter(opts)
	case ".json":
		return NewJSONExporter(opts)
	default:
		return NewHTMLExporter(opts)
	}
}

// ToFile exports t to path in the format its extension names. A path
// without extension gets the exporter's.
func ToFile(t *Transcript, path string, opts *Options) (string, error) {
	exporter := ForPath(path, opts)
	if filepath.Ext(path) == "" {
		path += exporter.FileExtension()
	}

	content, err := exporter.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if err := util.WriteFileAtomic(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// DefaultFilename returns a file name for t, e.g.
// "sidechat_how_do_I_20250101_120000.html".
func DefaultFilename(t *Transcript, ext string) string {
	return fmt.Sprintf("sidechat_%s_%s%s",
		sanitizeFilename(t.Title),
		time.Now().Format("20060102_150405"),
		ext,
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 40 {
		runes = runes[:40]
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "conversation"
	}
	return b.String()
}

func roleLabel(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return "You"
	case chat.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

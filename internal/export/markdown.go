// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes each message's raw text under a role heading.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(t.Title))
	if t.Model != "" {
		fmt.Fprintf(&sb, "- **Model**: %s\n", t.Model)
	}
	fmt.Fprintf(&sb, "- **Created**: %s\n", formatTimestamp(t.CreatedAt))
	fmt.Fprintf(&sb, "- **Messages**: %d\n\n---\n\n", len(t.Messages))

	for _, m := range t.Messages {
		fmt.Fprintf(&sb, "## %s", roleLabel(m.Role))
		if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, " *(%s)*", m.CreatedAt.Format("15:04:05"))
		}
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimRight(m.RawText, "\n"))
		sb.WriteString("\n\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeMarkdown escapes characters that would change a heading.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "#", `\#`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/highlight"
	"github.com/jeranaias/sidechat/internal/markdown"
)

// copyButton matches the copy control of a rendered code block. It does
// nothing in a static page.
var copyButton = regexp.MustCompile(`<button class="copy-button">[^<]*</button>`)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes a standalone page with embedded CSS.
type HTMLExporter struct {
	options     *Options
	highlighter *highlight.Highlighter
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:     opts,
		highlighter: highlight.New(opts.HighlightStyle),
	}
}

// Export converts a transcript to HTML.
func (e *HTMLExporter) Export(t *Transcript) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	chromaCSS, err := e.highlighter.CSS()
	if err != nil {
		return nil, fmt.Errorf("highlight stylesheet: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(t.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"sidechat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", t.CreatedAt.Format(time.RFC3339))
	sb.WriteString("    <style>\n")
	sb.WriteString(pageCSS)
	sb.WriteString(chromaCSS)
	sb.WriteString("    </style>\n</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(t.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	if t.Model != "" {
		fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Model:</strong> %s</span>\n", html.EscapeString(t.Model))
	}
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(t.CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(t.Messages))
	sb.WriteString("            </div>\n        </header>\n")

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, m := range t.Messages {
		sb.WriteString(e.renderMessage(m))
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>sidechat</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n    </div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func (e *HTMLExporter) renderMessage(m chat.Message) string {
	body := m.RenderedHTML
	if body == "" {
		body = markdown.Render(m.RawText)
	}
	if m.Role == chat.RoleAssistant {
		body = e.highlighter.Highlight(body)
	}
	body = copyButton.ReplaceAllString(body, "")

	var sb strings.Builder
	fmt.Fprintf(&sb, "            <article class=\"message %s\">\n", m.Role)
	fmt.Fprintf(&sb, "                <div class=\"role\">%s", roleLabel(m.Role))
	if e.options.IncludeTimestamps && !m.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, " <span class=\"time\">%s</span>", m.CreatedAt.Format("15:04:05"))
	}
	sb.WriteString("</div>\n")
	fmt.Fprintf(&sb, "                <div class=\"content\">%s</div>\n", body)
	sb.WriteString("            </article>\n")
	return sb.String()
}

const pageCSS = `
        * { margin: 0; padding: 0; box-sizing: border-box; }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --border-color: #414868;
            --user-bg: #1f2335;
            --system-fg: #f7768e;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --border-color: #e1e4e8;
            --user-bg: #eef4ff;
            --system-fg: #d73a49;
        }

        body {
            font-family: -apple-system, "Segoe UI", "PingFang SC", sans-serif;
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; }
        .header { padding: 24px 32px; border-bottom: 1px solid var(--border-color); }
        .header h1 { font-size: 24px; margin-bottom: 8px; }
        .metadata { display: flex; gap: 16px; font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 16px 32px; }
        .message { margin: 16px 0; padding: 12px 16px; border-radius: 8px; border: 1px solid var(--border-color); }
        .message.user { background: var(--user-bg); }
        .message.system { color: var(--system-fg); }
        .role { font-weight: 600; font-size: 13px; margin-bottom: 6px; }
        .time { font-weight: 400; color: var(--text-muted); }
        .code-block-container pre { padding: 12px; border-radius: 6px; overflow-x: auto; margin: 8px 0; }
        code { font-family: "SF Mono", Consolas, monospace; }
        .footer { padding: 16px 32px; font-size: 12px; color: var(--text-muted); border-top: 1px solid var(--border-color); }
`

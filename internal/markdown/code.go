// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
)

// =============================================================================
// CODE PATTERNS
// =============================================================================

var (
	// fencePattern matches a complete fenced block. The closing fence is
	// required, so a block still streaming in is left as prose.
	fencePattern = regexp.MustCompile("```([\\w-]*)\\n([\\s\\S]*?)```")

	// inlineCodePattern matches single-backtick spans.
	inlineCodePattern = regexp.MustCompile("`([^`]+)`")
)

// Entities used for code whitespace.
const (
	entitySpace     = "&nbsp;"
	entityTab       = "&#160;&#160;"
	entityInlineTab = "&#160;&#160;&#160;&#160;"
	entityNewline   = "&#10;"
)

// DefaultLanguage is used when a fence names no language.
const DefaultLanguage = "plaintext"

// =============================================================================
// FENCED BLOCKS
// =============================================================================

// codeBlockHTML builds the container for one fenced block.
func codeBlockHTML(lang, body, label string) string {
	lang = strings.ToLower(lang)
	if lang == "" {
		lang = DefaultLanguage
	}
	return fmt.Sprintf(
		`<div class="code-block-container" data-language="%s"><pre><code class="language-%s">%s</code></pre><button class="copy-button">%s</button></div>`,
		lang, lang, encodeBlock(body), html.EscapeString(label))
}

// encodeBlock dedents body and encodes it for a code element.
func encodeBlock(body string) string {
	lines := dedent(trimBlankLines(strings.Split(body, "\n")))
	if len(lines) == 0 {
		return ""
	}

	code := html.EscapeString(strings.Join(lines, "\n"))
	code = strings.ReplaceAll(code, " ", entitySpace)
	code = strings.ReplaceAll(code, "\t", entityTab)
	return strings.ReplaceAll(code, "\n", entityNewline)
}

// trimBlankLines drops leading and trailing whitespace-only lines and a
// trailing carriage return on every line.
func trimBlankLines(lines []string) []string {
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// dedent strips the smallest leading-whitespace width of the non-blank lines
// from every line. Blank lines become empty.
func dedent(lines []string) []string {
	minIndent := -1
	for _, line := range lines {
		if isBlank(line) {
			continue
		}
		if n := indentWidth(line); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		if isBlank(line) {
			continue
		}
		out[i] = string([]rune(line)[minIndent:])
	}
	return out
}

// indentWidth counts leading whitespace runes. A tab counts as one.
func indentWidth(line string) int {
	n := 0
	for _, r := range line {
		if !unicode.IsSpace(r) {
			break
		}
		n++
	}
	return n
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// =============================================================================
// INLINE CODE
// =============================================================================

// inlineCodeHTML encodes one inline code span.
func inlineCodeHTML(code string) string {
	code = html.EscapeString(code)
	code = strings.ReplaceAll(code, " ", entitySpace)
	code = strings.ReplaceAll(code, "\t", entityInlineTab)
	return "<code>" + code + "</code>"
}

// =============================================================================
// DECODING
// =============================================================================

// codeDecoder reverses the whitespace entities. Order matters: the tab pair
// is matched before anything else can consume it.
var codeDecoder = strings.NewReplacer(
	entityNewline, "\n",
	entityTab, "\t",
	entitySpace, " ",
)

// DecodeCode returns the source text of an encoded code element body.
// DecodeCode(encoded) is exactly the dedented block text.
func DecodeCode(encoded string) string {
	return html.UnescapeString(codeDecoder.Replace(encoded))
}

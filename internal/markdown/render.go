// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCopyLabel is the copy-button label used by Render.
const DefaultCopyLabel = "Copy"

var (
	paragraphBreak = regexp.MustCompile(`\n\n+`)

	// Emphasis and link labels may span line breaks and held code.
	strongPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emPattern     = regexp.MustCompile(`\*(.+?)\*`)
	linkPattern   = regexp.MustCompile(`\[([^\]]+)\]\(([^)<\s]+)\)`)

	// heldPattern matches a placeholder left by hold. Escaped prose never
	// contains a literal '<', so placeholders cannot collide with input.
	heldPattern = regexp.MustCompile(`<(\d+)>`)
)

// blockedSchemes are link targets rendered as plain text.
var blockedSchemes = []string{"javascript:", "data:", "vbscript:"}

// segmentKind tells later stages what a piece of output may be touched by.
type segmentKind int

const (
	segProse      segmentKind = iota // escaped text; all later stages apply
	segInlineCode                    // line breaks only
	segBlock                         // final
)

type segment struct {
	kind segmentKind
	text string
}

// Renderer renders markdown with a fixed copy-button label.
// The zero value uses DefaultCopyLabel.
type Renderer struct {
	CopyLabel string
}

// NewRenderer returns a Renderer whose code blocks carry label.
func NewRenderer(label string) *Renderer {
	return &Renderer{CopyLabel: label}
}

var defaultRenderer = &Renderer{}

// Render renders text with the default copy label.
func Render(text string) string {
	return defaultRenderer.Render(text)
}

// Render converts text to HTML. It never fails; malformed markdown passes
// through as escaped text.
func (r *Renderer) Render(text string) string {
	label := r.CopyLabel
	if label == "" {
		label = DefaultCopyLabel
	}

	segs := splitInlineCode(splitFences(text, label))

	// Code is held out of the emphasis stage so its text is never touched,
	// while emphasis and links still see the prose around it as one string.
	var held heldCode
	var b strings.Builder
	for _, s := range segs {
		switch s.kind {
		case segProse:
			b.WriteString(formatBreaks(s.text))
		case segInlineCode:
			b.WriteString(held.hold(formatBreaks(s.text)))
		default:
			b.WriteString(held.hold(s.text))
		}
	}

	out := held.restore(formatEmphasis(b.String()))
	if strings.Contains(out, "</p><p>") {
		if !strings.HasPrefix(out, "<p>") {
			out = "<p>" + out
		}
		if !strings.HasSuffix(out, "</p>") {
			out += "</p>"
		}
	}
	return out
}

// =============================================================================
// STAGES
// =============================================================================

// splitFences turns complete fenced blocks into final segments. Everything
// else is left raw for splitInlineCode.
func splitFences(text, label string) []segment {
	var segs []segment
	last := 0
	for _, m := range fencePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			segs = append(segs, segment{kind: segProse, text: text[last:m[0]]})
		}
		lang := text[m[2]:m[3]]
		body := text[m[4]:m[5]]
		segs = append(segs, segment{kind: segBlock, text: codeBlockHTML(lang, body, label)})
		last = m[1]
	}
	if last < len(text) {
		segs = append(segs, segment{kind: segProse, text: text[last:]})
	}
	return segs
}

// splitInlineCode encodes inline code spans and escapes the remaining prose.
func splitInlineCode(in []segment) []segment {
	var out []segment
	for _, s := range in {
		if s.kind != segProse {
			out = append(out, s)
			continue
		}

		last := 0
		for _, m := range inlineCodePattern.FindAllStringSubmatchIndex(s.text, -1) {
			if m[0] > last {
				out = append(out, segment{kind: segProse, text: html.EscapeString(s.text[last:m[0]])})
			}
			out = append(out, segment{kind: segInlineCode, text: inlineCodeHTML(s.text[m[2]:m[3]])})
			last = m[1]
		}
		if last < len(s.text) {
			out = append(out, segment{kind: segProse, text: html.EscapeString(s.text[last:])})
		}
	}
	return out
}

// heldCode stores finished code HTML behind numbered placeholders.
type heldCode []string

func (h *heldCode) hold(code string) string {
	*h = append(*h, code)
	return "<" + strconv.Itoa(len(*h)-1) + ">"
}

func (h heldCode) restore(s string) string {
	if len(h) == 0 {
		return s
	}
	return heldPattern.ReplaceAllStringFunc(s, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		return h[i]
	})
}

// formatBreaks converts blank-line runs to paragraph boundaries and single
// newlines to line breaks.
func formatBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = paragraphBreak.ReplaceAllString(s, "</p><p>")
	return strings.ReplaceAll(s, "\n", "<br>")
}

// formatEmphasis applies strong, emphasis and links, in that order.
func formatEmphasis(s string) string {
	s = strongPattern.ReplaceAllString(s, "<strong>$1</strong>")
	s = emPattern.ReplaceAllString(s, "<em>$1</em>")
	return linkPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := linkPattern.FindStringSubmatch(m)
		label, href := parts[1], parts[2]
		if !safeHref(href) {
			return m
		}
		return `<a href="` + href + `" target="_blank" rel="noopener noreferrer">` + label + `</a>`
	})
}

func safeHref(href string) bool {
	lower := strings.ToLower(html.UnescapeString(href))
	for _, scheme := range blockedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

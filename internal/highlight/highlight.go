// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package highlight adds chroma syntax highlighting to rendered chat HTML.
//
// It runs once per message, after the stream has completed, and rewrites the
// body of every fenced code element. The rendered text itself is never
// changed, so copying code still works from the unhighlighted HTML.
package highlight

import (
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sidechat/internal/markdown"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "monokai"

// codeElement matches the code element of a rendered fenced block.
var codeElement = regexp.MustCompile(`<code class="language-([\w-]+)">([^<]*)</code>`)

// Highlighter rewrites rendered code blocks with chroma's class-based HTML.
// It is safe for concurrent use.
type Highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// New returns a Highlighter using the named chroma style, or the chroma
// fallback style when the name is unknown.
func New(styleName string) *Highlighter {
	if styleName == "" {
		styleName = DefaultStyle
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{
		style: style,
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.PreventSurroundingPre(true),
		),
	}
}

// Highlight returns html with every fenced code body highlighted. Blocks
// that fail to tokenise, and plaintext blocks, are left unchanged.
func (h *Highlighter) Highlight(html string) string {
	return codeElement.ReplaceAllStringFunc(html, func(m string) string {
		parts := codeElement.FindStringSubmatch(m)
		lang, encoded := parts[1], parts[2]
		if lang == markdown.DefaultLanguage || encoded == "" {
			return m
		}

		out, ok := h.Code(markdown.DecodeCode(encoded), lang)
		if !ok {
			return m
		}
		return `<code class="language-` + lang + ` chroma">` + out + `</code>`
	})
}

// Code highlights source as language. ok is false when chroma fails.
func (h *Highlighter) Code(source, language string) (string, bool) {
	// USABILITY: Named lexer first, then content sniffing, then plain text.
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		log.Warn().Err(err).Str("component", "highlight").Str("language", language).Msg("tokenise failed")
		return "", false
	}

	var buf strings.Builder
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		log.Warn().Err(err).Str("component", "highlight").Str("language", language).Msg("format failed")
		return "", false
	}
	return buf.String(), true
}

// CSS returns the stylesheet for the highlighter's classes.
func (h *Highlighter) CSS() (string, error) {
	var buf strings.Builder
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return "", err
	}
	return buf.String(), nil
}

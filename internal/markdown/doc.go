// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown renders the markdown subset used in chat responses to HTML.
//
// Render is a pure function of its input, so a partial response can be
// re-rendered from scratch on every delta and the final render is identical
// to rendering the whole response at once. Unterminated constructs stay
// literal until their closing delimiter arrives.
//
// Supported: fenced code blocks with an optional language, inline code,
// paragraphs and line breaks, **strong**, *emphasis* and [label](url) links.
//
// Code text is encoded with entities (&nbsp; for spaces, &#160;&#160; for
// tabs, &#10; for newlines) so that whitespace survives the panel's HTML
// handling. DecodeCode reverses the encoding exactly for the copy button.
package markdown

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package markdown

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var codeBodyPattern = regexp.MustCompile(`<code class="language-[\w-]+">(.*?)</code>`)

// codeBodies returns the encoded bodies of all fenced blocks in out.
func codeBodies(t *testing.T, out string) []string {
	t.Helper()
	var bodies []string
	for _, m := range codeBodyPattern.FindAllStringSubmatch(out, -1) {
		bodies = append(bodies, m[1])
	}
	return bodies
}

// =============================================================================
// INLINE FORMATTING TESTS
// =============================================================================

func TestRender_InlineScenario(t *testing.T) {
	got := Render("**bold** and *italic* and `code x`")
	require.Equal(t, "<strong>bold</strong> and <em>italic</em> and <code>code&nbsp;x</code>", got)
}

func TestRender_Inline(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"escape", `<script>"x" & y</script>`, "&lt;script&gt;&#34;x&#34; &amp; y&lt;/script&gt;"},
		{"inline tab", "`a\tb`", "<code>a&#160;&#160;&#160;&#160;b</code>"},
		{"inline escape", "`<b>`", "<code>&lt;b&gt;</code>"},
		{"no emphasis in code", "`*a* **b**`", "<code>*a*&nbsp;**b**</code>"},
		{"link", "[docs](https://example.com/a?b=1&c=2)",
			`<a href="https://example.com/a?b=1&amp;c=2" target="_blank" rel="noopener noreferrer">docs</a>`},
		{"script link left literal", "[x](javascript:alert(1))", "[x](javascript:alert(1))"},
		{"unclosed strong", "**bo", "**bo"},
		{"unclosed inline code", "`abc", "`abc"},
		{"strong inside link label", "[**x**](http://a)",
			`<a href="http://a" target="_blank" rel="noopener noreferrer"><strong>x</strong></a>`},
		{"strong around inline code", "**use `x` now**", "<strong>use <code>x</code> now</strong>"},
		{"em around inline code", "*see `a b`*", "<em>see <code>a&nbsp;b</code></em>"},
		{"inline code as link label", "[`x`](http://a)",
			`<a href="http://a" target="_blank" rel="noopener noreferrer"><code>x</code></a>`},
		{"link label with code", "[see `code`](http://x)",
			`<a href="http://x" target="_blank" rel="noopener noreferrer">see <code>code</code></a>`},
		{"em across line break", "*a\nb*", "<em>a<br>b</em>"},
		{"strong across paragraphs", "**a\n\nb**", "<p><strong>a</p><p>b</strong></p>"},
		{"digits in angle brackets", "<1> **x**", "&lt;1&gt; <strong>x</strong>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Render(tt.in))
		})
	}
}

// =============================================================================
// PARAGRAPH TESTS
// =============================================================================

func TestRender_Paragraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single break", "a\nb", "a<br>b"},
		{"paragraphs", "a\n\nb\nc", "<p>a</p><p>b<br>c</p>"},
		{"blank run", "a\n\n\n\nb", "<p>a</p><p>b</p>"},
		{"crlf", "a\r\n\r\nb", "<p>a</p><p>b</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Render(tt.in))
		})
	}
}

// =============================================================================
// CODE BLOCK TESTS
// =============================================================================

func TestRender_CodeBlock(t *testing.T) {
	in := "```Go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```"
	want := `<div class="code-block-container" data-language="go"><pre><code class="language-go">` +
		`func&nbsp;main()&nbsp;{&#10;&#160;&#160;fmt.Println(&#34;hi&#34;)&#10;}` +
		`</code></pre><button class="copy-button">Copy</button></div>`

	require.Equal(t, want, Render(in))
}

func TestRender_CodeBlockDefaults(t *testing.T) {
	out := Render("```\n```")
	require.Equal(t,
		`<div class="code-block-container" data-language="plaintext"><pre><code class="language-plaintext"></code></pre><button class="copy-button">Copy</button></div>`,
		out)

	out = Render("```c-sharp\n\n   \n```")
	require.Contains(t, out, `data-language="c-sharp"`)
	require.Equal(t, []string{""}, codeBodies(t, out))
}

func TestRender_CodeBlockIndentation(t *testing.T) {
	out := Render("```\n\n    a\n  b\n\n      c\n\n```")
	bodies := codeBodies(t, out)
	require.Len(t, bodies, 1)

	lines := strings.Split(DecodeCode(bodies[0]), "\n")
	require.Equal(t, []string{"  a", "b", "", "    c"}, lines)
}

func TestRender_CodeBlockRoundTrip(t *testing.T) {
	source := "if a < b && c > \"d\" {\n\treturn 'x'  // two  spaces\n}\n\n\t\tdeep\n&nbsp; &#10; literal"
	out := Render("```js\n" + source + "\n```")

	bodies := codeBodies(t, out)
	require.Len(t, bodies, 1)
	require.NotContains(t, bodies[0], "\n")
	require.NotContains(t, bodies[0], " ")
	require.NotContains(t, bodies[0], "\t")
	require.Equal(t, source, DecodeCode(bodies[0]))
}

func TestRender_UnterminatedFence(t *testing.T) {
	out := Render("```go\nfmt.Println(1)")
	require.NotContains(t, out, "code-block-container")
	require.Equal(t, "```go<br>fmt.Println(1)", out)
}

func TestRender_BackticksInsideFence(t *testing.T) {
	out := Render("```\nx `y` *z*\n```")
	require.Equal(t, []string{"x&nbsp;`y`&nbsp;*z*"}, codeBodies(t, out))
}

func TestRender_BlocksAndProse(t *testing.T) {
	out := Render("Intro:\n\n```py\nprint(1)\n```\n\nDone **now**.")
	require.True(t, strings.HasPrefix(out, "<p>Intro:</p><p><div class=\"code-block-container\""))
	require.True(t, strings.HasSuffix(out, "</div></p><p>Done <strong>now</strong>.</p>"))
	require.Len(t, codeBodies(t, out), 1)
}

func TestRenderer_CopyLabel(t *testing.T) {
	out := NewRenderer("复制").Render("```\nx\n```")
	require.Contains(t, out, `<button class="copy-button">复制</button>`)

	var zero Renderer
	require.Contains(t, zero.Render("```\nx\n```"), `<button class="copy-button">Copy</button>`)
}

// =============================================================================
// PROPERTY TESTS
// =============================================================================

var samples = []string{
	"",
	"plain text",
	"**bold** and *italic* and `code x`",
	"Here:\n\n```go\nfunc f() {\n\treturn\n}\n```\nand `x`\n\n[link](http://a.b)",
	"```\nunterminated",
	"mixed ```inline``` fences\n\n```\n  a\n```",
	"中文 **粗体** `代码`",
}

func TestRender_Idempotent(t *testing.T) {
	for _, s := range samples {
		require.Equal(t, Render(s), Render(s))
	}
}

// TestRender_IncrementalConvergence renders every prefix, as a streaming
// session does, and checks the last render equals the one-shot render.
func TestRender_IncrementalConvergence(t *testing.T) {
	for _, s := range samples {
		var last string
		runes := []rune(s)
		for i := 0; i <= len(runes); i++ {
			last = Render(string(runes[:i]))
		}
		require.Equal(t, Render(s), last)
	}
}

func TestDecodeCode(t *testing.T) {
	require.Equal(t, "a b\tc\nd", DecodeCode("a&nbsp;b&#160;&#160;c&#10;d"))
	require.Equal(t, `<&>"'`, DecodeCode("&lt;&amp;&gt;&#34;&#39;"))
	require.Equal(t, "&nbsp;", DecodeCode("&amp;nbsp;"))
}

func TestRender_FenceUntouchedByEmphasis(t *testing.T) {
	out := Render("**before\n```\na *b* **c**\n```\nafter**")
	require.Equal(t, []string{"a&nbsp;*b*&nbsp;**c**"}, codeBodies(t, out))
	require.True(t, strings.HasPrefix(out, "<strong>before<br>"))
	require.True(t, strings.HasSuffix(out, "after</strong>"))
}

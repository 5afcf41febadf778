// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/i18n"
)

func TestMain(m *testing.M) {
	setColorsEnabled(false)
	os.Exit(m.Run())
}

// =============================================================================
// TEST HELPERS
// =============================================================================

// writeTestConfig writes a config using a plain file credential store under dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[credentials]
backend = "file"
path = %q
seal = false

[log]
level = "error"
format = "json"
`, filepath.Join(dir, "credentials.json"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// runCommand runs the root command with args and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// sseEndpoint streams parts as completion deltas.
func sseEndpoint(parts ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range parts {
			b, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": p}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

type recordingClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *recordingClipboard) WriteAll(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

func (c *recordingClipboard) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// newTestREPL returns a REPL with no line editor talking to a fake endpoint.
func newTestREPL(t *testing.T, parts ...string) (*chatREPL, *bytes.Buffer, *recordingClipboard) {
	t.Helper()
	upstream := httptest.NewServer(sseEndpoint(parts...))
	t.Cleanup(upstream.Close)

	cfg := config.Default()
	cfg.API.BaseURL = upstream.URL
	cfg.UI.CopyRevertMS = 100
	a := &app{cfg: cfg}

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "sk-test-0123456789"))

	var out bytes.Buffer
	r := newChatREPL(a, store, &out)
	r.display = newTerminalDisplay(&out, modePlain, cfg.UI.WordWrap)
	clip := &recordingClipboard{}
	r.copyButton.WithClipboard(clip)
	t.Cleanup(r.copyButton.Stop)
	return r, &out, clip
}

// =============================================================================
// DISPLAY TESTS
// =============================================================================

func TestDisplayRows(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  int
	}{
		{"empty", "", 80, 0},
		{"one line", "hello", 80, 1},
		{"trailing newline", "hello\n", 80, 1},
		{"blank line counts", "a\n\nb", 80, 3},
		{"wraps", strings.Repeat("x", 25), 10, 3},
		{"wide runes", "你好你好你好", 10, 2},
		{"zero width uses default", "hello", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, displayRows(tt.text, tt.width))
		})
	}
}

func TestTerminalDisplay_PlainStreams(t *testing.T) {
	var out bytes.Buffer
	d := newTerminalDisplay(&out, modePlain, 80)

	msg := chat.Message{Role: chat.RoleAssistant}
	d.Publish(msg)
	msg.RawText = "Hel"
	d.Publish(msg)
	msg.RawText = "Hello"
	d.Publish(msg)
	d.Finalize(msg, "<p>Hello</p>")

	require.Equal(t, "Assistant\nHello\n", out.String())
}

func TestTerminalDisplay_HTMLPrintsOnlyFinal(t *testing.T) {
	var out bytes.Buffer
	d := newTerminalDisplay(&out, modeHTML, 80)

	msg := chat.Message{Role: chat.RoleAssistant, RawText: "**hi**"}
	d.Publish(msg)
	d.Finalize(msg, "<p><strong>hi</strong></p>")

	require.Equal(t, "<p><strong>hi</strong></p>\n", out.String())
}

func TestTerminalDisplay_SystemMessage(t *testing.T) {
	var out bytes.Buffer
	d := newTerminalDisplay(&out, modePlain, 80)

	d.Append(chat.Message{Role: chat.RoleUser, RawText: "question"})
	d.Append(chat.Message{Role: chat.RoleSystem, RawText: "Error: boom"})

	require.Equal(t, "[!] Error: boom\n", out.String())
}

func TestTerminalDisplay_DiscardEndsLine(t *testing.T) {
	var out bytes.Buffer
	d := newTerminalDisplay(&out, modePlain, 80)

	msg := chat.Message{Role: chat.RoleAssistant}
	d.Publish(msg)
	msg.RawText = "partial"
	d.Publish(msg)
	d.Discard(msg)

	require.Equal(t, "Assistant\npartial\n", out.String())
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "sidechat "+Version)
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	out, err := runCommand(t, "--config", path, "config", "path")
	require.NoError(t, err)
	require.Equal(t, path+"\n", out)

	out, err = runCommand(t, "--config", path, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, path)
	require.FileExists(t, path)

	_, err = runCommand(t, "--config", path, "config", "init")
	require.Error(t, err)
	require.Contains(t, err.Error(), "--force")

	_, err = runCommand(t, "--config", path, "config", "init", "--force")
	require.NoError(t, err)

	out, err = runCommand(t, "--config", path, "--locale", "zh-CN", "config", "show")
	require.NoError(t, err)
	require.Contains(t, out, `base_url = "`+config.DefaultBaseURL+`"`)
	require.Contains(t, out, `locale = "zh-CN"`)
}

func TestConfigCommand_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\nword_wrap = 1\n"), 0600))

	_, err := runCommand(t, "--config", path, "config", "show")
	require.Error(t, err)
	require.Contains(t, err.Error(), "word_wrap")
}

func TestKeyCommands(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())
	const key = "sk-abcdefghijklmnop"
	notFound := i18n.New("en").T(i18n.CredentialNotFound)

	out, err := runCommand(t, "--config", cfgPath, "key", "show")
	require.NoError(t, err)
	require.Contains(t, out, notFound)

	out, err = runCommand(t, "--config", cfgPath, "key", "set", key)
	require.NoError(t, err)
	require.Contains(t, out, "sk-...mnop")
	require.NotContains(t, out, key)

	out, err = runCommand(t, "--config", cfgPath, "key", "show")
	require.NoError(t, err)
	require.Contains(t, out, "sk-...mnop")
	require.Contains(t, out, "Fingerprint:")
	require.NotContains(t, out, key)

	_, err = runCommand(t, "--config", cfgPath, "key", "clear")
	require.NoError(t, err)

	out, err = runCommand(t, "--config", cfgPath, "key", "show")
	require.NoError(t, err)
	require.Contains(t, out, notFound)
}

func TestKeySet_ReadsStdin(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir())

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("sk-from-stdin-123456\n"))
	root.SetArgs([]string{"--config", cfgPath, "key", "set"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "sk-...3456")

	_, err := runCommand(t, "--config", cfgPath, "key", "set")
	require.Error(t, err)
}

// =============================================================================
// CHAT REPL TESTS
// =============================================================================

func TestREPL_SendAndHistory(t *testing.T) {
	r, out, _ := newTestREPL(t, "Hello ", "there")

	r.send(context.Background(), "hi")
	require.Contains(t, out.String(), "Hello there")

	out.Reset()
	keepGoing, err := r.handleSlash(context.Background(), "/history")
	require.NoError(t, err)
	require.True(t, keepGoing)
	require.Contains(t, out.String(), "1. You: hi")
	require.Contains(t, out.String(), "2. AI: Hello there")
}

func TestREPL_Clear(t *testing.T) {
	r, out, _ := newTestREPL(t, "ok")
	r.send(context.Background(), "hi")
	require.Len(t, r.session.Messages(), 2)

	_, err := r.handleSlash(context.Background(), "/c")
	require.NoError(t, err)
	require.Empty(t, r.session.Messages())

	out.Reset()
	_, err = r.handleSlash(context.Background(), "/history")
	require.NoError(t, err)
	require.Contains(t, out.String(), "No messages yet")
}

func TestREPL_Copy(t *testing.T) {
	r, out, clip := newTestREPL(t, "Try:\n\n```go\nx := 1\n```\n\nand\n\n```sh\necho hi\n```\n")

	_, err := r.handleSlash(context.Background(), "/copy")
	require.Error(t, err)

	r.send(context.Background(), "show me")

	out.Reset()
	_, err = r.handleSlash(context.Background(), "/copy")
	require.NoError(t, err)
	require.Equal(t, "x := 1", clip.get())
	require.Contains(t, out.String(), "[Copied!]")

	_, err = r.handleSlash(context.Background(), "/copy 2")
	require.NoError(t, err)
	require.Equal(t, "echo hi", clip.get())

	_, err = r.handleSlash(context.Background(), "/copy 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "has 2")

	_, err = r.handleSlash(context.Background(), "/copy zero")
	require.Error(t, err)
}

func TestREPL_Export(t *testing.T) {
	r, out, _ := newTestREPL(t, "**answer**")
	r.send(context.Background(), "question")

	path := filepath.Join(t.TempDir(), "chat.md")
	_, err := r.handleSlash(context.Background(), "/export "+path)
	require.NoError(t, err)
	require.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "question")
	require.Contains(t, string(data), "**answer**")
}

func TestREPL_QuitAndUnknown(t *testing.T) {
	r, _, _ := newTestREPL(t)

	for _, cmd := range []string{"/quit", "/q", "/exit"} {
		keepGoing, err := r.handleSlash(context.Background(), cmd)
		require.NoError(t, err)
		require.False(t, keepGoing, cmd)
	}

	keepGoing, err := r.handleSlash(context.Background(), "/nope")
	require.Error(t, err)
	require.True(t, keepGoing)
	require.Contains(t, err.Error(), "unknown command")

	_, err = r.handleSlash(context.Background(), "/key")
	require.Error(t, err)
}

func TestREPL_Help(t *testing.T) {
	r, out, _ := newTestREPL(t)
	_, err := r.handleSlash(context.Background(), "/help")
	require.NoError(t, err)
	for _, want := range []string{"/clear", "/copy", "/export", "/history", "/key", "/quit"} {
		require.Contains(t, out.String(), want)
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// =============================================================================
// CREDENTIAL PROMPTS
// =============================================================================

// ttyPrompter reads an API key from the terminal without echo.
// SECURITY: Keys never appear on screen or in shell history.
type ttyPrompter struct {
	out io.Writer
}

// PromptCredential implements chat.Prompter.
func (p ttyPrompter) PromptCredential(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt+" ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// linerPrompter asks through the chat REPL's line editor.
type linerPrompter struct {
	line *liner.State
}

// PromptCredential implements chat.Prompter. Ctrl+C declines.
func (p linerPrompter) PromptCredential(ctx context.Context, prompt string) (string, error) {
	key, err := p.line.PasswordPrompt(prompt + " ")
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// readSecret reads a secret from the terminal without echo, or the first
// line of stdin when it is not a terminal.
func readSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return ttyPrompter{out: out}.PromptCredential(context.Background(), prompt)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command.
//
// USABILITY: Markdown rendering and history for better CLI experience
//
// Interactive Commands (during chat):
//   /help, /h           Show available commands
//   /clear, /c          Clear the conversation
//   /copy [N]           Copy code block N of the last reply (default 1)
//   /export [FILE]      Export the conversation (.html, .md or .json)
//   /history            Show conversation history
//   /key                Enter a new API key
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the reply in flight
//   Ctrl+D              Exit chat
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/copybutton"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/export"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/util"
)

func newChatCommand(a *app) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if model != "" {
				a.cfg.API.Model = model
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer credstore.Close(store)

			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			line.SetMultiLineMode(true)

			repl := newChatREPL(a, store, cmd.OutOrStdout())
			repl.line = line
			repl.session.WithPrompter(linerPrompter{line: line})

			repl.loadHistory()
			defer func() {
				repl.saveHistory()
				line.Close()
			}()

			return repl.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model to use (overrides config)")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	cfg         *config.Config
	client      *cloud.Client
	store       credstore.Store
	session     *chat.Session
	display     *terminalDisplay
	loc         *i18n.Localizer
	out         io.Writer
	line        *liner.State
	copyButton  *copybutton.Button
	historyFile string
}

func newChatREPL(a *app, store credstore.Store, out io.Writer) *chatREPL {
	loc := a.localizer()
	client := a.newClient()

	mode := modePlain
	if stdoutIsTerminal() {
		mode = modeGlamour
	}

	r := &chatREPL{
		cfg:     a.cfg,
		client:  client,
		store:   store,
		loc:     loc,
		out:     out,
		display: newTerminalDisplay(out, mode, a.cfg.UI.WordWrap),
	}
	r.session = a.newSession(client, store)
	r.copyButton = copybutton.NewButton(copybutton.Labels{
		Copy:   loc.T(i18n.CopyLabel),
		Copied: loc.T(i18n.CopiedLabel),
		Failed: loc.T(i18n.CopyFailedLabel),
	}, time.Duration(a.cfg.UI.CopyRevertMS)*time.Millisecond, nil)

	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
	}
	return r
}

func (r *chatREPL) run(ctx context.Context) error {
	r.printWelcome(ctx)

	for {
		input, err := r.line.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			keepGoing, err := r.handleSlash(ctx, input)
			if err != nil {
				fmt.Fprintln(r.out, paint(warningStyle, err.Error()))
			}
			if !keepGoing {
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

// send streams one reply. Ctrl+C cancels it without leaving the REPL.
func (r *chatREPL) send(ctx context.Context, input string) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	// Errors are already shown as system messages.
	_, _ = r.session.Send(sendCtx, input, r.display)
	if sendCtx.Err() != nil && ctx.Err() == nil {
		fmt.Fprintln(r.out, paint(dimStyle, "[cancelled]"))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlash runs a slash command. It returns false when the REPL should exit.
func (r *chatREPL) handleSlash(ctx context.Context, input string) (bool, error) {
	parts := strings.Fields(input)
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()
	case "/clear", "/c":
		r.session.Clear()
		fmt.Fprintln(r.out, paint(commandStyle, "[Conversation cleared]"))
	case "/copy":
		return true, r.copyBlock(args)
	case "/export":
		return true, r.export(args)
	case "/history":
		r.printHistory()
	case "/key":
		return true, r.setKey(ctx)
	case "/quit", "/q", "/exit":
		return false, nil
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// lastReply returns the newest completed assistant message.
func (r *chatREPL) lastReply() (chat.Message, bool) {
	msgs := r.session.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			return msgs[i], true
		}
	}
	return chat.Message{}, false
}

func (r *chatREPL) copyBlock(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("usage: /copy [N] (N counts code blocks from 1)")
		}
		n = v
	}

	reply, ok := r.lastReply()
	if !ok {
		return fmt.Errorf("no reply to copy from")
	}
	count := copybutton.Count(reply.RenderedHTML)
	if count == 0 {
		return fmt.Errorf("the last reply has no code blocks")
	}
	text, err := copybutton.Extract(reply.RenderedHTML, n-1)
	if err != nil {
		return fmt.Errorf("code block %d not found (the last reply has %d)", n, count)
	}

	_ = r.copyButton.Press(text)
	_, shown := r.copyButton.State()
	fmt.Fprintln(r.out, paint(commandStyle, "["+shown+"]"))
	return nil
}

func (r *chatREPL) export(args []string) error {
	t := export.NewTranscript(r.session.Messages(), r.client.Model())
	path := export.DefaultFilename(t, ".html")
	if len(args) > 0 {
		path = args[0]
	}

	opts := export.DefaultOptions()
	opts.HighlightStyle = r.cfg.UI.HighlightStyle
	written, err := export.ToFile(t, path, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s %s\n", paint(successStyle, "Exported to"), written)
	return nil
}

func (r *chatREPL) setKey(ctx context.Context) error {
	if r.line == nil {
		return fmt.Errorf("no terminal to read the key from")
	}
	key, err := linerPrompter{line: r.line}.PromptCredential(ctx, r.loc.T(i18n.PromptAPIKey))
	if err != nil || key == "" {
		return err
	}
	if err := r.store.Set(ctx, key); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%s %s\n", paint(successStyle, r.loc.T(i18n.CredentialSaved)), util.MaskSecret(key))
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *chatREPL) printWelcome(ctx context.Context) {
	keyState := r.loc.T(i18n.CredentialNotFound)
	if key, ok, err := r.store.Get(ctx); err == nil && ok {
		keyState = util.MaskSecret(key)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, paint(titleStyle, "sidechat"))
	fmt.Fprintln(r.out, rule(30))
	fmt.Fprintln(r.out, label("Model:")+r.client.Model())
	fmt.Fprintln(r.out, label("Endpoint:")+r.client.Endpoint())
	fmt.Fprintln(r.out, label("API key:")+keyState)
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, paint(dimStyle, "Type a message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Clear the conversation"},
		{"/copy [N]", "Copy code block N of the last reply"},
		{"/export [FILE]", "Export to .html, .md or .json"},
		{"/history", "Show conversation history"},
		{"/key", "Enter a new API key"},
		{"/quit, /q", "Exit chat"},
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, paint(titleStyle, "Available Commands"))
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %s  %s\n",
			paint(commandStyle, fmt.Sprintf("%-15s", c.cmd)),
			paint(dimStyle, c.desc))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, paint(dimStyle, "Tip: Ctrl+C cancels the current reply, Ctrl+D exits"))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printHistory() {
	msgs := r.session.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, paint(dimStyle, "[No messages yet]"))
		return
	}

	width, _ := terminalSize()
	for i, m := range msgs {
		var role string
		switch m.Role {
		case chat.RoleUser:
			role = paint(userStyle, "You")
		case chat.RoleAssistant:
			role = paint(assistantStyle, "AI")
		default:
			role = paint(warningStyle, "System")
		}
		fmt.Fprintf(r.out, "  %d. %s: %s\n", i+1, role, util.Preview(m.RawText, width-16))
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

func (r *chatREPL) loadHistory() {
	if r.historyFile == "" || r.line == nil {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = r.line.ReadHistory(f)
		f.Close()
	}
}

// saveHistory persists input history.
// SECURITY: History can contain pasted secrets; the file is 0600.
func (r *chatREPL) saveHistory() {
	if r.historyFile == "" || r.line == nil {
		return
	}
	var buf bytes.Buffer
	if _, err := r.line.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.WriteFileAtomic(r.historyFile, buf.Bytes(), 0600, 0700)
}

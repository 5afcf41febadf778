// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/highlight"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/markdown"
)

// errReported means the failure was already shown to the user.
var errReported = errors.New("reported")

func newAskCommand(a *app) *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask one question and stream the answer",
		Example: `  sidechat ask "How do I reverse a slice in Go?"
  sidechat ask --html "Show a Python hello world" > answer.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer credstore.Close(store)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			mode := modePlain
			switch {
			case asHTML:
				mode = modeHTML
			case stdoutIsTerminal():
				mode = modeGlamour
			}
			display := newTerminalDisplay(cmd.OutOrStdout(), mode, a.cfg.UI.WordWrap)

			session := a.newSession(a.newClient(), store)
			if stdinIsTerminal() {
				session.WithPrompter(ttyPrompter{out: cmd.ErrOrStderr()})
			}

			if _, err := session.Send(ctx, strings.Join(args, " "), display); err != nil {
				return errReported
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "print the rendered, highlighted HTML instead of text")
	return cmd
}

// newSession builds a chat session from the config.
func (a *app) newSession(client *cloud.Client, store credstore.Store) *chat.Session {
	loc := a.localizer()
	return chat.NewSession(client, store).
		WithLocalizer(loc).
		WithRenderer(markdown.NewRenderer(loc.T(i18n.CopyLabel))).
		WithHighlighter(highlight.New(a.cfg.UI.HighlightStyle))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/sidechat/internal/chat"
)

// displayMode selects how a terminalDisplay shows finished replies.
type displayMode int

const (
	// modePlain streams raw markdown and leaves it as is.
	modePlain displayMode = iota
	// modeGlamour streams raw markdown, then redraws it with glamour.
	modeGlamour
	// modeHTML prints only the final highlighted HTML.
	modeHTML
)

// terminalDisplay is the chat.Display of the chat and ask commands.
type terminalDisplay struct {
	out      io.Writer
	mode     displayMode
	renderer *glamour.TermRenderer
	width    int
	height   int

	printed string // raw text already written for the reply in flight
}

func newTerminalDisplay(out io.Writer, mode displayMode, wordWrap int) *terminalDisplay {
	width, height := terminalSize()
	d := &terminalDisplay{out: out, mode: mode, width: width, height: height}

	if mode == modeGlamour {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(glamourStyle()),
			glamour.WithWordWrap(wordWrap),
		)
		if err != nil {
			d.mode = modePlain
		} else {
			d.renderer = r
		}
	}
	return d
}

// Append implements chat.Display. User input is already on screen.
func (d *terminalDisplay) Append(msg chat.Message) {
	if msg.Role == chat.RoleSystem {
		fmt.Fprintln(d.out, paint(errorStyle, "[!] ")+msg.RawText)
	}
}

// Publish implements chat.Display.
func (d *terminalDisplay) Publish(msg chat.Message) {
	if d.mode == modeHTML {
		return
	}
	if msg.RawText == "" {
		d.printed = ""
		fmt.Fprintln(d.out, paint(assistantStyle, "Assistant"))
		return
	}
	// RawText only grows while streaming.
	fmt.Fprint(d.out, msg.RawText[len(d.printed):])
	d.printed = msg.RawText
}

// Finalize implements chat.Display.
func (d *terminalDisplay) Finalize(msg chat.Message, highlighted string) {
	defer func() { d.printed = "" }()

	switch d.mode {
	case modeHTML:
		fmt.Fprintln(d.out, highlighted)
		return

	case modeGlamour:
		rows := displayRows(d.printed, d.width)
		rendered, err := d.renderer.Render(msg.RawText)
		if err == nil && rows < d.height-1 {
			up := rows - 1
			if strings.HasSuffix(d.printed, "\n") {
				up = rows
			}
			d.rewind(up)
			fmt.Fprint(d.out, rendered)
			return
		}
	}

	if !strings.HasSuffix(d.printed, "\n") {
		fmt.Fprintln(d.out)
	}
}

// Discard implements chat.Display.
func (d *terminalDisplay) Discard(msg chat.Message) {
	if d.printed != "" && !strings.HasSuffix(d.printed, "\n") {
		fmt.Fprintln(d.out)
	}
	d.printed = ""
}

// rewind moves the cursor up to the first streamed row and clears
// everything below it.
func (d *terminalDisplay) rewind(up int) {
	fmt.Fprint(d.out, "\r")
	if up > 0 {
		fmt.Fprintf(d.out, "\x1b[%dA", up)
	}
	fmt.Fprint(d.out, "\x1b[J")
}

// displayRows counts the terminal rows text occupies at width columns.
// UNICODE: Wide runes take two columns.
func displayRows(text string, width int) int {
	if text == "" {
		return 0
	}
	if width <= 0 {
		width = fallbackWidth
	}
	rows := 0
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		w := runewidth.StringWidth(line)
		if w == 0 {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}

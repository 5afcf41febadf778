// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TERMINAL DETECTION
// USABILITY: Output adapts when piped or redirected
// =============================================================================

// Fallback geometry when stdout is not a terminal.
const (
	fallbackWidth  = 80
	fallbackHeight = 24
	minWidth       = 40
)

func stdinIsTerminal() bool  { return term.IsTerminal(int(os.Stdin.Fd())) }
func stdoutIsTerminal() bool { return term.IsTerminal(int(os.Stdout.Fd())) }

// terminalSize reports the stdout window size, never narrower than minWidth.
func terminalSize() (width, height int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 || h <= 0 {
		return fallbackWidth, fallbackHeight
	}
	return max(w, minWidth), h
}

// =============================================================================
// COLOR
// =============================================================================

var (
	stdout = termenv.NewOutput(os.Stdout)

	colorOnce sync.Once
	colorOn   bool
)

// colorsEnabled honours NO_COLOR, then FORCE_COLOR, then whether stdout is
// a terminal. It is decided once per process.
func colorsEnabled() bool {
	colorOnce.Do(func() {
		switch {
		case os.Getenv("NO_COLOR") != "":
			colorOn = false
		case os.Getenv("FORCE_COLOR") != "":
			colorOn = true
		default:
			colorOn = stdoutIsTerminal()
		}
	})
	return colorOn
}

// setColorsEnabled pins the color decision.
func setColorsEnabled(on bool) {
	colorOnce = sync.Once{}
	colorOnce.Do(func() { colorOn = on })
}

func colorProfile() termenv.Profile {
	if !colorsEnabled() {
		return termenv.Ascii
	}
	return stdout.EnvColorProfile()
}

// glamourStyle names the glamour standard style for the terminal background.
func glamourStyle() string {
	switch {
	case !colorsEnabled():
		return "notty"
	case stdout.HasDarkBackground():
		return "dark"
	default:
		return "light"
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	lipgloss.SetColorProfile(colorProfile())
}

// =============================================================================
// PALETTE
// =============================================================================

// ANSI 256 color indexes.
const (
	colorCyan    = lipgloss.Color("39")
	colorGreen   = lipgloss.Color("42")
	colorEmerald = lipgloss.Color("79")
	colorPurple  = lipgloss.Color("141")
	colorRed     = lipgloss.Color("196")
	colorOrange  = lipgloss.Color("214")
	colorGrey    = lipgloss.Color("242")
	colorSilver  = lipgloss.Color("245")
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle     = lipgloss.NewStyle().Foreground(colorSilver).Width(12)
	successStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	errorStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	warningStyle   = lipgloss.NewStyle().Foreground(colorOrange)
	dimStyle       = lipgloss.NewStyle().Foreground(colorGrey)
	commandStyle   = lipgloss.NewStyle().Foreground(colorEmerald)
	userStyle      = titleStyle
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPurple)
)

// =============================================================================
// RENDERING
// =============================================================================

// paint applies style only when colors are on, so piped output stays plain.
func paint(style lipgloss.Style, text string) string {
	if !colorsEnabled() {
		return text
	}
	return style.Render(text)
}

// label renders a fixed-width field label. Without colors the width is
// still applied so columns line up.
func label(text string) string {
	if !colorsEnabled() {
		return text + strings.Repeat(" ", max(0, 12-lipgloss.Width(text)))
	}
	return labelStyle.Render(text)
}

// rule renders a horizontal separator width columns wide.
func rule(width int) string {
	return paint(dimStyle, strings.Repeat("─", width))
}

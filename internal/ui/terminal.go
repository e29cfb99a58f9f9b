package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ColorsEnabled reports whether styled output should be emitted. NO_COLOR
// and dumb terminals disable it.
func ColorsEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

// ConfigureStyles disables lipgloss rendering when the terminal cannot
// display it. Called once from the command entry point.
func ConfigureStyles() {
	if !ColorsEnabled() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

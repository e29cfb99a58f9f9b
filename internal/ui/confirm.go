package ui

import "github.com/charmbracelet/huh"

// Confirm asks a yes/no question on the terminal. Defaults to no, so an
// accidental Enter never approves a destructive plan.
func Confirm(title string) (bool, error) {
	var approved bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Apply").
			Negative("Cancel").
			Value(&approved),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return approved, nil
}

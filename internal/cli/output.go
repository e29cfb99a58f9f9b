package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/rediacc/desktop/internal/errors"
	"github.com/rediacc/desktop/internal/ui"
)

// resourceRow is one line of a listing, shared by teams/machines/repos.
type resourceRow struct {
	Name   string `json:"name"`
	Detail string `json:"guid,omitempty"`
	Vault  bool   `json:"has_vault"`
}

// renderResources prints a listing in the configured output format.
func renderResources(format, header string, rows []resourceRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "", "table":
		renderTable(header, rows)
		return nil
	default:
		return errors.New(errors.ErrConfig,
			"Unknown output format: "+format,
			"Supported formats: table, json")
	}
}

func renderTable(header string, rows []resourceRow) {
	if len(rows) == 0 {
		fmt.Println("No results.")
		return
	}

	headerStyle := lipgloss.NewStyle().Foreground(ui.ColorSecondary).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(ui.ColorMuted)

	width := len(header)
	for _, r := range rows {
		if len(r.Name) > width {
			width = len(r.Name)
		}
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-*s  VAULT", width, header)))
	for _, r := range rows {
		vault := mutedStyle.Render("-")
		if r.Vault {
			vault = ui.SymbolSuccess
		}
		if r.Detail != "" {
			fmt.Printf("%-*s  %-5s  %s\n", width, r.Name, vault, mutedStyle.Render(r.Detail))
		} else {
			fmt.Printf("%-*s  %s\n", width, r.Name, vault)
		}
	}
}

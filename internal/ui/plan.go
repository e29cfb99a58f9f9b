package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rediacc/desktop/internal/syncer"
)

// PlanRenderer formats sync plans and reports for terminal display.
type PlanRenderer struct {
	copyStyle   lipgloss.Style
	updateStyle lipgloss.Style
	deleteStyle lipgloss.Style
	mutedStyle  lipgloss.Style
	errorStyle  lipgloss.Style
}

func NewPlanRenderer() *PlanRenderer {
	return &PlanRenderer{
		copyStyle:   lipgloss.NewStyle().Foreground(ColorSuccess),
		updateStyle: lipgloss.NewStyle().Foreground(ColorInfo),
		deleteStyle: lipgloss.NewStyle().Foreground(ColorError),
		mutedStyle:  lipgloss.NewStyle().Foreground(ColorMuted),
		errorStyle:  lipgloss.NewStyle().Foreground(ColorError),
	}
}

// RenderPlan previews what a sync pass would do, one line per mutating
// operation, with skips collapsed into a count.
func (r *PlanRenderer) RenderPlan(plan *syncer.Plan) string {
	var b strings.Builder
	skips := 0
	for _, op := range plan.Ops {
		switch op.Kind {
		case syncer.OpCopy:
			fmt.Fprintf(&b, "  %s %s\n", r.copyStyle.Render("+ copy  "), op.Entry.RelPath)
		case syncer.OpUpdate:
			fmt.Fprintf(&b, "  %s %s\n", r.updateStyle.Render("~ update"), op.Entry.RelPath)
		case syncer.OpDelete:
			fmt.Fprintf(&b, "  %s %s\n", r.deleteStyle.Render("- delete"), op.Entry.RelPath)
		case syncer.OpSkip:
			skips++
		}
	}

	copies, updates, deletes := plan.Changes()
	if copies+updates+deletes == 0 {
		b.WriteString(r.mutedStyle.Render("  nothing to do, trees are in sync") + "\n")
	}
	fmt.Fprintf(&b, "\n%s\n", r.mutedStyle.Render(fmt.Sprintf(
		"%d to copy, %d to update, %d to delete, %d unchanged",
		copies, updates, deletes, skips)))
	return b.String()
}

// RenderReport summarizes an executed plan, listing per-entry failures.
func (r *PlanRenderer) RenderReport(report *syncer.Report) string {
	var b strings.Builder

	transferred := 0
	for _, res := range report.Results {
		if res.Err == nil && res.Op.Kind != syncer.OpSkip {
			transferred++
		}
	}

	failures := report.Failures()
	if len(failures) > 0 {
		fmt.Fprintf(&b, "%s %d operation(s) failed:\n",
			r.errorStyle.Render(SymbolFail), len(failures))
		for _, res := range failures {
			fmt.Fprintf(&b, "  %s %s: %v\n",
				r.errorStyle.Render(string(res.Op.Kind)), res.Op.Entry.RelPath, res.Err)
		}
	}

	verb := "applied"
	if report.DryRun {
		verb = "previewed"
	}
	fmt.Fprintf(&b, "%s %d operation(s) %s, %d failed\n",
		statusSymbol(report), transferred, verb, len(failures))
	return b.String()
}

func statusSymbol(report *syncer.Report) string {
	if report.Success() {
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolSuccess)
	}
	return lipgloss.NewStyle().Foreground(ColorError).Render(SymbolFail)
}

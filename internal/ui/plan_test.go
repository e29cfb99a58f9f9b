package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rediacc/desktop/internal/syncer"
)

func testPlan() *syncer.Plan {
	return &syncer.Plan{Ops: []syncer.Operation{
		{Kind: syncer.OpSkip, Entry: syncer.Entry{RelPath: "a.txt"}, Reason: "unchanged"},
		{Kind: syncer.OpUpdate, Entry: syncer.Entry{RelPath: "b.txt", Kind: syncer.KindFile}},
		{Kind: syncer.OpCopy, Entry: syncer.Entry{RelPath: "c.txt", Kind: syncer.KindFile}},
		{Kind: syncer.OpDelete, Entry: syncer.Entry{RelPath: "d.old", Kind: syncer.KindFile}},
	}}
}

func TestRenderPlan(t *testing.T) {
	out := NewPlanRenderer().RenderPlan(testPlan())

	assert.Contains(t, out, "+ copy")
	assert.Contains(t, out, "c.txt")
	assert.Contains(t, out, "~ update")
	assert.Contains(t, out, "- delete")
	assert.Contains(t, out, "1 to copy, 1 to update, 1 to delete, 1 unchanged")
	assert.NotContains(t, out, "a.txt", "skips are collapsed into the count")
}

func TestRenderPlanEmpty(t *testing.T) {
	plan := &syncer.Plan{Ops: []syncer.Operation{
		{Kind: syncer.OpSkip, Entry: syncer.Entry{RelPath: "a.txt"}, Reason: "unchanged"},
	}}
	out := NewPlanRenderer().RenderPlan(plan)
	assert.Contains(t, out, "nothing to do")
}

func TestRenderReport(t *testing.T) {
	report := &syncer.Report{Results: []syncer.OpResult{
		{Op: syncer.Operation{Kind: syncer.OpCopy, Entry: syncer.Entry{RelPath: "c.txt"}}},
		{Op: syncer.Operation{Kind: syncer.OpUpdate, Entry: syncer.Entry{RelPath: "b.txt"}},
			Err: errors.New("disk full")},
	}}
	out := NewPlanRenderer().RenderReport(report)

	assert.Contains(t, out, "1 operation(s) failed")
	assert.Contains(t, out, "b.txt")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "1 operation(s) applied, 1 failed")
}

func TestRenderReportDryRun(t *testing.T) {
	report := &syncer.Report{DryRun: true, Results: []syncer.OpResult{
		{Op: syncer.Operation{Kind: syncer.OpCopy, Entry: syncer.Entry{RelPath: "c.txt"}}},
	}}
	out := NewPlanRenderer().RenderReport(report)
	assert.Contains(t, out, "previewed")
}

func TestSpinnerRenders(t *testing.T) {
	frames := make(chan string, 64)
	s := NewSpinner("transferring")
	s.SetOutput(func(text string) {
		select {
		case frames <- text:
		default:
		}
	})
	s.Start()
	time.Sleep(250 * time.Millisecond)
	s.Stop()
	close(frames)

	var lines []string
	for text := range frames {
		lines = append(lines, text)
	}
	assert.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "transferring")
}

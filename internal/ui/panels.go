package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

func queueStatusIcon(status string) string {
	switch status {
	case "running", "in_progress", "assigned":
		return ProcessingStyle.Render("▶")
	case "done", "completed":
		return SuccessStyle.Render("✓")
	case "failed", "error":
		return ErrorStyle.Render("✗")
	case "blocked":
		return WarningStyle.Render("⏸")
	default:
		return DimStyle.Render("○")
	}
}

// renderQueue lists remote queue tasks followed by pipeline requests.
func (m *Model) renderQueue(width, height int) string {
	title := fmt.Sprintf("Queue (%d)", len(m.queue))
	if !m.connected {
		title += " · offline"
	}

	var lines []string
	if len(m.queue) == 0 {
		lines = append(lines, DimStyle.Render("No queued tasks"))
	}
	for _, t := range m.queue {
		pane := "-"
		if t.Pane != nil {
			pane = fmt.Sprintf("#%d", *t.Pane)
		}
		project := t.Project
		if project == "" {
			project = "?"
		}
		line := fmt.Sprintf("%s P%d %-4s %s %s",
			queueStatusIcon(t.Status), t.Priority, pane,
			InfoStyle.Render(runewidth.Truncate(project, 16, "…")), t.Task)
		if len(t.DependsOn) > 0 {
			line += DimStyle.Render(" ← " + strings.Join(t.DependsOn, ","))
		}
		lines = append(lines, line)
	}

	if len(m.pipeline) > 0 {
		lines = append(lines, "", PanelTitle.Render(fmt.Sprintf("Pipeline (%d)", len(m.pipeline))))
		for _, r := range m.pipeline {
			done := 0
			for _, t := range r.Tasks {
				if t.Status == "done" || t.Status == "completed" {
					done++
				}
			}
			route := r.Classification.Project
			if r.Classification.Role != "" {
				route += "/" + r.Classification.Role
			}
			lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
				queueStatusIcon(r.Status), DimStyle.Render(r.ID),
				InfoStyle.Render(route), r.Request,
				DimStyle.Render(fmt.Sprintf("(%d/%d)", done, len(r.Tasks)))))
		}
	}

	return renderPanel(title, strings.Join(lines, "\n"), width, height, false)
}

// renderDashboard shows the aggregate remote payload in place of the preview.
func (m *Model) renderDashboard(width, height int) string {
	d := m.dashboard
	if d == nil {
		msg := "Waiting for the AgentOS dashboard..."
		if !m.connected {
			msg = "AgentOS not connected"
		}
		return renderPanel("Dashboard", DimStyle.Render(msg), width, height, false)
	}

	var b strings.Builder
	section := func(name string) {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(PanelTitle.Render(name) + "\n")
	}

	section("Capacity")
	bottleneck := SuccessStyle.Render(d.Capacity.Bottleneck())
	if d.Capacity.Bottleneck() != "BALANCED" {
		bottleneck = WarningStyle.Render(d.Capacity.Bottleneck())
	}
	fmt.Fprintf(&b, "  ACU %.1f/%.1f (%.0f%%) · reviews %d/%d (%.0f%%) · %s\n",
		d.Capacity.ACUUsed, d.Capacity.ACUTotal, d.Capacity.ACUPercent(),
		d.Capacity.ReviewsUsed, d.Capacity.ReviewsTotal, d.Capacity.ReviewPercent(),
		bottleneck)

	if s := d.Sprint; s != nil {
		section("Sprint")
		days := fmt.Sprintf("%d days left", s.DaysLeft)
		if s.Ended {
			days = ErrorStyle.Render("ended")
		}
		fmt.Fprintf(&b, "  %s %d/%d issues (%.0f%%) · ACU %.1f/%.1f · %s\n",
			s.Name, s.DoneIssues, s.TotalIssues, s.Percent(), s.UsedACU, s.TotalACU, days)
	}

	if len(d.BoardSummary) > 0 {
		section(fmt.Sprintf("Board (%d issues)", d.TotalIssues()))
		for _, sp := range d.BoardSummary {
			b.WriteString("  " + InfoStyle.Render(sp.Name) + " " + formatCounts(sp.Counts) + "\n")
		}
	}

	digest, alerts := m.digest, m.alerts
	if d.Digest != nil {
		digest = d.Digest
	}
	if d.Alerts != nil {
		alerts = d.Alerts
	}
	if digest != nil {
		section("Last 24h")
		fmt.Fprintf(&b, "  %s tool calls · %s errors (%s) · %s commits · %s files · %s tasks done\n",
			humanize.Comma(digest.ToolCalls), humanize.Comma(digest.Errors), digest.ErrorRate,
			humanize.Comma(digest.Commits), humanize.Comma(digest.FilesTouched),
			humanize.Comma(digest.TasksCompleted))
	}
	if alerts != nil && len(alerts.Alerts) > 0 {
		section(fmt.Sprintf("Alerts (%d)", alerts.Count))
		for _, a := range alerts.Alerts {
			level := WarningStyle.Render(a.Level)
			if a.Level == "critical" || a.Level == "error" {
				level = ErrorStyle.Render(a.Level)
			}
			fmt.Fprintf(&b, "  %s %s pane %s %s %s\n", level, a.Type, a.PaneID, a.Project, a.ErrorRate)
		}
	}

	if len(d.MCPs) > 0 {
		section("MCP servers")
		names := make([]string, 0, len(d.MCPs))
		for _, s := range d.MCPs {
			names = append(names, fmt.Sprintf("%s(%d)", s.Name, s.Tools))
		}
		fmt.Fprintf(&b, "  %d servers · %d tools · %s\n", len(d.MCPs), d.TotalMCPTools(), strings.Join(names, " "))
	}

	ac := d.AutoConfig
	section("Auto")
	fmt.Fprintf(&b, "  parallel %d · cycle %ds · assign %v · complete %v", ac.MaxParallel, ac.CycleInterval, ac.AutoAssign, ac.AutoComplete)
	if ac.DefaultRole != "" {
		fmt.Fprintf(&b, " · role %s", ac.DefaultRole)
	}
	b.WriteString("\n")

	if s := d.Session; s.CurrentTask != "" || s.BlockedOn != "" {
		section("Session")
		if s.CurrentTask != "" {
			b.WriteString("  " + s.CurrentTask + DimStyle.Render(fmt.Sprintf(" (%d done, %d next)", len(s.Completed), len(s.NextSteps))) + "\n")
		}
		if s.BlockedOn != "" {
			b.WriteString("  " + WarningStyle.Render("blocked: ") + s.BlockedOn + "\n")
		}
	}

	if len(d.Processes) > 0 {
		section("Processes")
		for _, p := range d.Processes {
			fmt.Fprintf(&b, "  %s %s %d/%d %s\n", queueStatusIcon(p.Status), p.Template, p.CompletedSteps, p.TotalSteps, DimStyle.Render(p.Space))
		}
	}

	if len(d.Milestones) > 0 {
		section("Milestones")
		for _, ms := range d.Milestones {
			fmt.Fprintf(&b, "  %s %s %s\n", queueStatusIcon(ms.Status), ms.Name, DimStyle.Render(ms.DueDate))
		}
	}

	if len(d.Agents) > 0 {
		section(fmt.Sprintf("Peers (%d)", len(d.Agents)))
		for _, p := range d.Agents {
			fmt.Fprintf(&b, "  #%s %s %s\n", p.Pane, InfoStyle.Render(p.Project), p.Task)
		}
	}

	if len(d.Activity) > 0 {
		section("Activity")
		recent := d.Activity
		if len(recent) > 5 {
			recent = recent[len(recent)-5:]
		}
		for _, a := range recent {
			fmt.Fprintf(&b, "  %s #%d %s %s\n", DimStyle.Render(a.TS), a.Pane, a.Event, a.Summary)
		}
	}

	return renderPanel("Dashboard", strings.TrimRight(b.String(), "\n"), width, height, false)
}

// formatCounts renders status counts in a stable order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return DimStyle.Render(strings.Join(parts, " "))
}

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"visionlab/pkg/models"
	"visionlab/pkg/ui"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var sections []string
	sections = append(sections, logoStyle.Width(m.width).Render("VISIONLAB ▸ TRAINING MONITOR"))

	colWidth := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(colWidth),
		m.renderJobsPanel(colWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderDatasetsPanel(colWidth),
		m.renderLogsPanel(colWidth),
	)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help, q to quit"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" SESSION ")
	stats := m.statsLocked()

	lines := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Session Time:"), statsValueStyle.Render(formatClock(time.Since(m.sessionStartTime)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Watching:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.Watching))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Completed:"), successStyle.Render(fmt.Sprintf("%d", stats.Completed))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%d", stats.Failed))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

func (m *Model) renderJobsPanel(width int) string {
	title := titleStyle.Render(" TRAINING JOBS ")

	jobs := m.jobsLocked()
	if len(jobs) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No jobs watched")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	items := make([]string, 0, len(jobs))
	for i := range jobs {
		items = append(items, m.renderJob(&jobs[i], width-4))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...)),
	)
}

// renderJob renders one job with its progress bar
func (m *Model) renderJob(job *JobItem, width int) string {
	last := job.Tracker.Last
	status := string(last.Status)

	if job.State != JobWatching {
		mark := successStyle.Render("✓")
		if job.State == JobFailed {
			mark = errorStyle.Render("✗")
		}
		line := fmt.Sprintf("%s %s %s", mark, ui.ShortID(job.ID), StatusStyle(status).Render(status))
		if job.Error != nil {
			line += " " + errorStyle.Render(job.Error.Error())
		} else if last.Error != "" {
			line += " " + errorStyle.Render(last.Error)
		}
		return jobDoneStyle.Render(line)
	}

	header := fmt.Sprintf("%s %s %s %s",
		m.spinner.View(),
		jobTitleStyle.Render(ui.ShortID(job.ID)),
		StatusStyle(status).Render(status),
		statsValueStyle.Render(fmt.Sprintf("%.1f%%", job.Tracker.Progress())),
	)
	if eta, ok := job.Tracker.ETA(); ok {
		header += " " + logMessageStyle.Render("eta "+ui.FormatDuration(eta))
	}

	bar := m.progressBars[job.ID]
	bar.Width = width - 4
	if bar.Width < 10 {
		bar.Width = 10
	}

	lines := []string{header, bar.ViewAs(job.Tracker.Progress() / 100)}
	if metrics := ui.FormatMetrics(last); metrics != "" {
		lines = append(lines, metricsStyle.Render(metrics))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderDatasetsPanel(width int) string {
	title := titleStyle.Render(" DATASETS ")

	if !m.hasDatasets {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Dataset info unavailable")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	lines := make([]string, 0, len(models.Splits))
	for _, split := range models.Splits {
		value := "empty"
		if info := m.datasets.Get(split); info != nil {
			value = fmt.Sprintf("%d files, %s", info.FileCount, ui.FormatBytes(info.TotalSize))
		}
		lines = append(lines, fmt.Sprintf("%s %s",
			statsLabelStyle.Render(fmt.Sprintf("%-6s", split)),
			statsValueStyle.Render(value),
		))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))

		msg := log.Message
		if maxMsgLen > 3 && len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(msg)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 24
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Quit the monitor (training keeps running)
    ctrl+l   - Clear the log
    ?        - Toggle this help

  Status:
    ` + successStyle.Render("completed") + `  - Training finished
    ` + StatusStyle("training").Render("training") + `   - In progress
    ` + errorStyle.Render("error") + `      - Training failed
`

	return panelStyle.Width(m.width).Render(help)
}

// formatClock formats a duration as a clock reading
func formatClock(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

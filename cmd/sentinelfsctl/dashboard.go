package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = time.Second
	logTailLines    = 200
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type refreshMsg struct {
	status []string
	peers  []string
	stats  []string
	logs   []string
	err    error
}

// dashboard is a bubbletea Model polling STATUS/PEERS/STATS/LOGS on a
// tick, following the same KeyMsg-switch/View-string idiom as the
// teacher's mode-selector Model: a handful of lines rendered fresh on
// every Update. The log tail renders through a bubbles/viewport so it
// scrolls independently of the rest of the screen.
type dashboard struct {
	sock     string
	last     refreshMsg
	showLogs bool
	logs     viewport.Model
}

func runDashboard(sock string) {
	vp := viewport.New(80, 15)
	p := tea.NewProgram(dashboard{sock: sock, logs: vp})
	if _, err := p.Run(); err != nil {
		fmt.Println(errStyle.Render(fmt.Sprintf("sentinelfsctl: %v", err)))
	}
}

func (d dashboard) Init() tea.Cmd {
	return tea.Batch(d.poll(), tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} }))
}

type tickMsg struct{}

func (d dashboard) poll() tea.Cmd {
	return func() tea.Msg {
		status, errS := sendCommand(d.sock, "STATUS")
		peers, errP := sendCommand(d.sock, "PEERS")
		stats, errT := sendCommand(d.sock, "STATS")
		logs, errL := sendCommand(d.sock, fmt.Sprintf("LOGS|%d", logTailLines))
		for _, err := range []error{errS, errP, errT, errL} {
			if err != nil {
				return refreshMsg{err: err}
			}
		}
		return refreshMsg{status: status, peers: peers, stats: stats, logs: logs}
	}
}

func (d dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		switch m.String() {
		case "q", "ctrl+c":
			return d, tea.Quit
		case "l":
			d.showLogs = !d.showLogs
			return d, nil
		}
	case tickMsg:
		return d, tea.Batch(d.poll(), tea.Tick(refreshInterval, func(time.Time) tea.Msg { return tickMsg{} }))
	case refreshMsg:
		d.last = m
		if m.err == nil {
			d.logs.SetContent(strings.Join(m.logs, "\n"))
			d.logs.GotoBottom()
		}
		return d, nil
	}
	if d.showLogs {
		var cmd tea.Cmd
		d.logs, cmd = d.logs.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d dashboard) View() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("sentinelfs") + "\n\n")

	if d.last.err != nil {
		b.WriteString(errStyle.Render(d.last.err.Error()) + "\n")
		b.WriteString("\nPress q to quit.\n")
		return b.String()
	}

	b.WriteString(headingStyle.Render("status") + "\n")
	for _, l := range d.last.status {
		b.WriteString(l + "\n")
	}

	b.WriteString("\n" + headingStyle.Render("peers") + "\n")
	if len(d.last.peers) == 0 {
		b.WriteString("(none)\n")
	}
	for _, l := range d.last.peers {
		b.WriteString(l + "\n")
	}

	b.WriteString("\n" + headingStyle.Render("stats") + "\n")
	for _, l := range d.last.stats {
		b.WriteString(l + "\n")
	}

	if d.showLogs {
		b.WriteString("\n" + headingStyle.Render("logs") + "\n")
		b.WriteString(d.logs.View() + "\n")
	}

	b.WriteString("\nPress l to toggle logs, q to quit.\n")
	return b.String()
}

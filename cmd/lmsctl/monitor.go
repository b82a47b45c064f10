package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	monitorTitle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	monitorLabel    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	monitorOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	monitorScanning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// progressFrame mirrors internal/daemon.ProgressEvent's JSON shape.
type progressFrame struct {
	Category  string `json:"Category"`
	Path      string `json:"Path"`
	UpToDate  uint64 `json:"UpToDate"`
	Processed uint64 `json:"Processed"`
	Deleted   uint64 `json:"Deleted"`
	Skipped   uint64 `json:"Skipped"`
	Errors    uint64 `json:"Errors"`
}

type eventMsg sseEvent
type streamErrMsg struct{ err error }

type monitorModel struct {
	c        *client
	spinner  spinner.Model
	status   statusResponse
	progress progressFrame
	events   chan sseEvent
	stop     func()
	err      error
	quitting bool
}

func newMonitorModel(c *client, events chan sseEvent, stop func()) monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	return monitorModel{c: c, spinner: s, events: events, stop: stop}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events), fetchStatus(m.c))
}

func waitForEvent(events chan sseEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamErrMsg{err: fmt.Errorf("event stream closed")}
		}
		return eventMsg(ev)
	}
}

type statusMsg statusResponse

func fetchStatus(c *client) tea.Cmd {
	return func() tea.Msg {
		st, err := c.Status()
		if err != nil {
			return streamErrMsg{err: err}
		}
		return statusMsg(*st)
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.stop != nil {
				m.stop()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = statusResponse(msg)
		return m, nil

	case eventMsg:
		switch msg.Event {
		case "progress":
			var p progressFrame
			if err := json.Unmarshal([]byte(msg.Data), &p); err == nil {
				m.progress = p
			}
		case "properties":
			var st statusResponse
			if err := json.Unmarshal([]byte(msg.Data), &st); err == nil {
				m.status = st
			}
		}
		return m, waitForEvent(m.events)

	case streamErrMsg:
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b string
	b += monitorTitle.Render("lms-scan monitor") + "\n\n"
	if m.err != nil {
		b += lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("error: "+m.err.Error()) + "\n"
	}

	state := monitorOK.Render("idle")
	if m.status.IsScanning {
		state = m.spinner.View() + " " + monitorScanning.Render("scanning")
	}
	b += monitorLabel.Render("state:        ") + state + "\n"
	b += monitorLabel.Render("write-locked: ") + fmt.Sprintf("%v", m.status.WriteLocked) + "\n"
	b += monitorLabel.Render("update id:    ") + fmt.Sprintf("%d", m.status.UpdateID) + "\n\n"

	b += monitorLabel.Render("current path: ") + m.progress.Path + "\n"
	b += monitorLabel.Render("processed:    ") + fmt.Sprintf("%d", m.progress.Processed) + "\n"
	b += monitorLabel.Render("up-to-date:   ") + fmt.Sprintf("%d", m.progress.UpToDate) + "\n"
	b += monitorLabel.Render("deleted:      ") + fmt.Sprintf("%d", m.progress.Deleted) + "\n"
	b += monitorLabel.Render("skipped:      ") + fmt.Sprintf("%d", m.progress.Skipped) + "\n"
	b += monitorLabel.Render("errors:       ") + fmt.Sprintf("%d", m.progress.Errors) + "\n\n"

	b += lipgloss.NewStyle().Faint(true).Render("press q to quit") + "\n"
	return b
}

func runMonitor(c *client) error {
	events := make(chan sseEvent, 32)
	stop, err := c.StreamEvents(events)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}

	p := tea.NewProgram(newMonitorModel(c, events, stop))
	_, err = p.Run()
	return err
}

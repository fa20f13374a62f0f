// Package ui is the terminal rendering of the weather widget.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kjstillabower/weather-widget/internal/controller"
	"github.com/kjstillabower/weather-widget/internal/models"
)

// ConnectivityReporter is the write side of netmon.Monitor. The terminal has no
// host signal, so ctrl+o toggles one.
type ConnectivityReporter interface {
	IsOnline() bool
	Toggle() bool
}

// Model is the bubbletea model for the widget.
type Model struct {
	ctx     context.Context
	ctrl    *controller.Controller
	monitor ConnectivityReporter

	input   textinput.Model
	spinner spinner.Model

	state  controller.State
	online bool
	width  int
	height int
}

// NewModel creates the widget model. ctx bounds every lookup.
func NewModel(ctx context.Context, ctrl *controller.Controller, monitor ConnectivityReporter) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter a city (e.g. London)"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	st := ctrl.State()
	ti.SetValue(st.Input)
	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		monitor: monitor,
		input:   ti,
		spinner: s,
		state:   st,
		online:  monitor.IsOnline(),
	}
}

// Init starts the cursor blink and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case lookupDoneMsg:
		// A superseded lookup returns the newer request's snapshot; never step back.
		if msg.state.RequestID >= m.state.RequestID {
			m.state = msg.state
		}
		return m, nil

	case connectivityMsg:
		// Toggles can resolve out of order; show what the monitor holds now.
		m.online = m.monitor.IsOnline()
		m.state.Online = m.online
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyCtrlO:
		return m, toggleConnectivity(m.monitor)

	case tea.KeyEnter:
		city := m.input.Value()
		if strings.TrimSpace(city) != "" && m.online {
			m.state.Phase = controller.PhaseLoading
			m.state.Err = nil
		}
		return m, lookupWeather(m.ctx, m.ctrl, city)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		// Typing dismisses the current error.
		st := m.ctrl.SetInput(after)
		m.state.Input = st.Input
		m.state.Err = st.Err
		m.state.Phase = st.Phase
	}
	return m, cmd
}

// View renders the widget.
func (m Model) View() string {
	var sections []string

	status := onlineStyle.Render("● online")
	if !m.online {
		status = offlineStyle.Render("● offline")
	}
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, titleStyle.Render("☁ Weather"), "  ", status),
		"",
		inputBoxStyle.Render(m.input.View()),
	)

	if m.state.Phase == controller.PhaseLoading {
		sections = append(sections, "", fmt.Sprintf("%s %s", m.spinner.View(), mutedStyle.Render("Fetching weather...")))
	}

	if msg := m.state.Message(); msg != "" {
		if m.state.FromCache() {
			sections = append(sections, "", noticeStyle.Render("⚠ "+msg))
		} else {
			sections = append(sections, "", errorStyle.Render("✗ "+msg))
		}
	}

	if m.state.Record != nil {
		sections = append(sections, "", renderCard(*m.state.Record, m.state.FromCache()))
	}

	sections = append(sections, helpStyle.Render("Enter: Search • Ctrl+O: Toggle online • Esc/Ctrl+C: Quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderCard renders one weather record.
func renderCard(r models.WeatherRecord, cached bool) string {
	var b strings.Builder
	b.WriteString(locationStyle.Render(r.DisplayName()))
	b.WriteString("\n\n")
	b.WriteString(temperatureStyle.Render(r.FormatTemperature()))
	b.WriteString("  ")
	b.WriteString(valueStyle.Render(r.Conditions))
	b.WriteString("\n\n")

	stats := []struct{ label, value string }{
		{"HUMIDITY", r.FormatHumidity()},
		{"CHANCE OF RAIN", r.FormatRainChance()},
		{"WIND SPEED", r.FormatWindSpeed()},
	}
	for _, s := range stats {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-15s", s.label)))
		b.WriteString(valueStyle.Render(s.value))
		b.WriteString("\n")
	}
	if r.Icon != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(r.IconURL()))
	}

	if cached {
		return cachedCardStyle.Render(b.String())
	}
	return cardStyle.Render(b.String())
}

// RenderPlain renders a state without styling, for one-shot CLI output.
func RenderPlain(st controller.State) string {
	var b strings.Builder
	if msg := st.Message(); msg != "" {
		b.WriteString(msg)
		b.WriteString("\n")
	}
	if st.Record == nil {
		return b.String()
	}
	r := st.Record
	fmt.Fprintf(&b, "%s\n", r.DisplayName())
	fmt.Fprintf(&b, "%s  %s\n", r.FormatTemperature(), r.Conditions)
	fmt.Fprintf(&b, "%-15s%s\n", "HUMIDITY", r.FormatHumidity())
	fmt.Fprintf(&b, "%-15s%s\n", "CHANCE OF RAIN", r.FormatRainChance())
	fmt.Fprintf(&b, "%-15s%s\n", "WIND SPEED", r.FormatWindSpeed())
	if r.Icon != "" {
		fmt.Fprintf(&b, "%s\n", r.IconURL())
	}
	return b.String()
}

package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kjstillabower/weather-widget/internal/controller"
)

// lookupDoneMsg carries the controller state after a lookup resolves.
type lookupDoneMsg struct {
	state controller.State
}

// connectivityMsg is sent after the reported connectivity changed.
type connectivityMsg struct {
	online bool
}

// lookupWeather runs the lookup off the update loop.
func lookupWeather(ctx context.Context, ctrl *controller.Controller, city string) tea.Cmd {
	return func() tea.Msg {
		return lookupDoneMsg{state: ctrl.RequestWeather(ctx, city)}
	}
}

// toggleConnectivity flips the reported signal off the update loop; the
// controller's offline handler reads the slot.
func toggleConnectivity(reporter ConnectivityReporter) tea.Cmd {
	return func() tea.Msg {
		return connectivityMsg{online: reporter.Toggle()}
	}
}

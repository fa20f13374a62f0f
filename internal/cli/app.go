package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-widget/internal/client"
	"github.com/kjstillabower/weather-widget/internal/config"
	"github.com/kjstillabower/weather-widget/internal/controller"
	"github.com/kjstillabower/weather-widget/internal/netmon"
	"github.com/kjstillabower/weather-widget/internal/observability"
	"github.com/kjstillabower/weather-widget/internal/slot"
)

// app holds the components every subcommand shares.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   slot.Store
	monitor *netmon.Monitor
	ctrl    *controller.Controller
	// slotPing is set for backends with a reachability check.
	slotPing func() error
}

// newApp wires client, slot, monitor and controller from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, startOnline bool) (*app, error) {
	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}

	store, err := slot.Open(cfg.SlotOptions())
	if err != nil {
		return nil, fmt.Errorf("slot: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}
	if mc, ok := store.(*slot.MemcachedStore); ok {
		a.slotPing = mc.Ping
	}
	logger.Info("slot backend", zap.String("backend", cfg.SlotBackend))

	a.monitor = netmon.New(startOnline, logger)
	a.ctrl = controller.New(ctx, weatherClient, store, a.monitor, logger,
		controller.WithRules(cfg.ValidationRules()))
	return a, nil
}

func (a *app) close() {
	a.ctrl.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("slot close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(a.logger); err != nil {
		a.logger.Error("telemetry flush", zap.Error(err))
	}
}

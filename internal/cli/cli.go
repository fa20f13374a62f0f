// Package cli defines the weather command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-widget/internal/config"
	"github.com/kjstillabower/weather-widget/internal/controller"
	httphandler "github.com/kjstillabower/weather-widget/internal/http"
	"github.com/kjstillabower/weather-widget/internal/lifecycle"
	"github.com/kjstillabower/weather-widget/internal/observability"
	"github.com/kjstillabower/weather-widget/internal/ui"
)

// LoadFunc returns the configuration for a run; config.Load in production.
type LoadFunc func() (*config.Config, error)

type rootFlags struct {
	slotBackend string
	offline     bool
}

// New returns the root command.
func New(load LoadFunc) *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "weather",
		Short:         "Current weather lookup with an offline fallback to the last result",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.slotBackend, "slot", "", "slot backend override: file, sqlite, memcached, in_memory")
	root.PersistentFlags().BoolVar(&flags.offline, "offline", false, "start with connectivity reported offline")

	root.AddCommand(newLookupCmd(load, flags), newTUICmd(load, flags), newServeCmd(load, flags))
	return root
}

func loadConfig(load LoadFunc, flags *rootFlags) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flags.slotBackend != "" {
		cfg.SlotBackend = flags.slotBackend
	}
	return cfg, nil
}

func newLookupCmd(load LoadFunc, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <city>",
		Short: "Look up a city once and print the card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(load, flags)
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.LogFile, "lookup")
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, logger, !(flags.offline || cfg.StartOffline))
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()
			st := a.ctrl.RequestWeather(ctx, args[0])
			if st.Phase == controller.PhaseError {
				return fmt.Errorf("lookup %q: %w", args[0], st.Err)
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderPlain(st))
			return nil
		},
	}
}

func newTUICmd(load LoadFunc, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the interactive terminal widget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(load, flags)
			if err != nil {
				return err
			}
			logPath := cfg.LogFile
			if logPath == "" {
				logPath = filepath.Join(filepath.Dir(cfg.SlotFilePath), "widget.log")
			}
			logger, err := observability.NewLogger(logPath, "tui")
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, logger, !(flags.offline || cfg.StartOffline))
			if err != nil {
				return err
			}
			defer a.close()

			p := tea.NewProgram(ui.NewModel(cmd.Context(), a.ctrl, a.monitor),
				tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("terminal widget: %w", err)
			}
			return nil
		},
	}
}

func newServeCmd(load LoadFunc, flags *rootFlags) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget over HTTP for a browser front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(load, flags)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.ServerPort = port
			}
			logger, err := observability.NewLogger(cfg.LogFile, "serve")
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg, logger, !(flags.offline || cfg.StartOffline))
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides server.port)")
	return cmd
}

// serve runs the HTTP surface until ctx is done, then drains.
func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(a.ctrl, a.monitor, logger, a.slotPing)
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	lifecycle.Set(lifecycle.Serving)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("graceful shutdown triggered")
	lifecycle.Set(lifecycle.Draining)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
	logger.Info("shutdown complete")
	return nil
}

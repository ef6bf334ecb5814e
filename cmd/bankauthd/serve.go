package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/bankauth/httpapi"
	promexport "github.com/MrEthical07/bankauth/metrics/export/prometheus"
	"github.com/MrEthical07/bankauth/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	d, err := a.openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	reg, err := promexport.NewRegistry(d.engine)
	if err != nil {
		return err
	}

	var throttle *middleware.Throttle
	if a.cfg.HTTP.ThrottleRPS > 0 {
		throttle = middleware.NewThrottle(a.cfg.HTTP.ThrottleRPS, a.cfg.HTTP.ThrottleBurst, 10*time.Minute, nil)
	}

	engineCfg := d.engine.Config()
	api, err := httpapi.New(httpapi.Options{
		Service:        d.engine,
		Cookie:         engineCfg.Cookie,
		CSRFHeader:     engineCfg.CSRF.HeaderName,
		Logger:         a.log,
		Metrics:        promexport.Handler(reg),
		Registerer:     reg,
		Throttle:       throttle,
		TrustedProxies: a.cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return err
	}

	d.engine.StartSweeper(ctx)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.Routes(),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http listening", zap.String("addr", srv.Addr), zap.String("env", a.cfg.App.Env))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

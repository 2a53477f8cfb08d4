package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"carboncast/internal/forecast/handler"
	"carboncast/internal/platform/config"
	"carboncast/internal/platform/httpserver"
	"carboncast/internal/platform/logger"
	httptransport "carboncast/internal/transport/http"
	"carboncast/pkg/domain"
	pkgstrings "carboncast/pkg/platform/strings"
)

const shutdownTimeout = 10 * time.Second

// commandEnv is populated by the root command before any subcommand runs.
type commandEnv struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	rt := &commandEnv{}
	var logLevel string

	cmd := &cobra.Command{
		Use:          "carboncast",
		Short:        "Carbon emission forecasting service",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log, err := logger.New(os.Stdout, cfg.LogLevel)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = log
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	cmd.AddCommand(serveCmd(rt), trainCmd(rt))
	return cmd
}

func serveCmd(rt *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load or train models for every domain and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.serve(cmd.Context())
		},
	}
}

func trainCmd(rt *commandEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "train [domain...]",
		Short: "Train and save models for the given domains (all when omitted), then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			sectors, err := parseSectors(args)
			if err != nil {
				return err
			}
			return rt.train(cmd.Context(), sectors)
		},
	}
}

func parseSectors(args []string) ([]domain.Sector, error) {
	names := pkgstrings.DedupeAndTrimLower(args)
	if len(names) == 0 {
		return domain.AllSectors(), nil
	}
	sectors := make([]domain.Sector, 0, len(names))
	for _, arg := range names {
		s, err := domain.ParseSector(arg)
		if err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	return sectors, nil
}

func (rt *commandEnv) train(ctx context.Context, sectors []domain.Sector) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	a, err := newApp(ctx, rt.cfg, rt.logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	var errs []error
	for _, sector := range sectors {
		if err := a.service.RetrainDomain(ctx, sector); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rt.logger.ErrorContext(ctx, "training failed", "domain", sector, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sector, err))
		}
	}
	return errors.Join(errs...)
}

func (rt *commandEnv) serve(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	a, err := newApp(ctx, rt.cfg, rt.logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	h := handler.New(a.service, rt.logger, rt.cfg.Retrain.WaitTimeout)
	router := httptransport.NewRouter(rt.logger, prometheus.DefaultGatherer, h)
	srv := httpserver.New(rt.cfg.Server.Addr, router, rt.cfg.Retrain.WaitTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.service.Bootstrap(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		rt.logger.InfoContext(gctx, "bootstrap finished", "all_ready", a.service.AllReady())
		return nil
	})
	g.Go(func() error {
		if err := a.service.RunWorker(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		rt.logger.InfoContext(gctx, "starting carboncast", "addr", rt.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		rt.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

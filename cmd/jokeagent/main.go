// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command jokeagent serves the joke telling A2A agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-a2a/jokeagent/internal/config"
)

func init() {
	// Enable the use of the random pool for UUID generation.
	uuid.EnableRandPool()
}

type flags struct {
	configFile string
	envFile    string
	host       string
	port       int
	store      string
	offline    bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "jokeagent",
		Short:         "Serve the joke agent over A2A JSON-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cfg.Logger(os.Stderr))
		},
	}

	f.bind(cmd)
	cmd.AddCommand(newAskCommand(), newCardCommand())
	return cmd
}

func (f *flags) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.configFile, "config", "c", "", "YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded into the environment when present")
	fs.StringVar(&f.host, "host", "localhost", "host to listen on")
	fs.IntVar(&f.port, "port", 10000, "port to listen on")
	fs.StringVar(&f.store, "store", config.StoreMemory, "task store driver (memory or sqlite)")
	fs.BoolVar(&f.offline, "offline", false, "tell a canned joke instead of calling Gemini")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// loadConfig layers explicitly set flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile, f.envFile)
	if err != nil {
		return nil, err
	}

	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("store") {
		cfg.Store.Driver = f.store
	}
	if fs.Changed("offline") {
		cfg.Offline = f.offline
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		_ = a.Close(ctx)
		return err
	}
	srv := &http.Server{
		Handler:  a.Handler(),
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	a.Start()
	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "joke agent listening",
			slog.String("addr", l.Addr().String()),
			slog.String("url", cfg.URL()),
			slog.String("store", cfg.Store.Driver),
		)
		serveErr <- srv.Serve(l)
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	closeErr := shutdown(shutdownCtx, srv, a)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(err, closeErr)
	}
	return closeErr
}

// shutdown stops accepting connections while the running invocations wind
// down, then releases the app once no request is in flight.
func shutdown(ctx context.Context, srv *http.Server, a *app) error {
	var g errgroup.Group
	g.Go(func() error { return srv.Shutdown(ctx) })
	g.Go(func() error { return a.Drain(ctx) })
	return errors.Join(g.Wait(), a.Close(ctx))
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jokeagent:", err)
		os.Exit(1)
	}
}

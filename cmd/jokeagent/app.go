// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/go-a2a/jokeagent/agent/joke"
	"github.com/go-a2a/jokeagent/auth"
	"github.com/go-a2a/jokeagent/internal/config"
	"github.com/go-a2a/jokeagent/server/event"
	"github.com/go-a2a/jokeagent/server/handler"
	"github.com/go-a2a/jokeagent/server/jsonrpc"
	"github.com/go-a2a/jokeagent/server/task"
)

// app holds every long lived component of the agent process.
type app struct {
	logger      *slog.Logger
	store       task.TaskStore
	configStore task.PushNotificationConfigStore
	sender      *task.HTTPPushSender
	janitor     *task.Janitor
	generator   joke.Generator
	handler     *handler.DefaultRequestHandler
	server      *jsonrpc.Server
}

// newApp assembles the agent described by cfg.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if err := a.openStores(ctx, cfg.Store); err != nil {
		return nil, err
	}

	var signer *task.JWTSigner
	if kid := cfg.Push.SigningKeyID; kid != "" {
		if signer, err = task.NewJWTSigner(kid); err != nil {
			return nil, err
		}
	}
	a.sender, err = task.NewHTTPPushSender(task.HTTPPushSenderConfig{
		Timeout:     cfg.Push.Timeout,
		ConfigStore: a.configStore,
		Logger:      logger.With(slog.String("component", "push")),
		Signer:      signer,
		MaxRetries:  cfg.Push.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create push sender: %w", err)
	}

	// Shared so the janitor can tell which tasks are still being written.
	queues := event.NewInMemoryQueueManager()

	if cfg.Retention.Enabled {
		a.janitor, err = task.NewJanitor(task.JanitorConfig{
			Store:       a.store,
			ConfigStore: a.configStore,
			Queues:      queues,
			TTL:         cfg.Retention.TTL,
			Schedule:    cfg.Retention.Schedule,
			Logger:      logger.With(slog.String("component", "janitor")),
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Offline {
		logger.WarnContext(ctx, "running offline, every answer is the same joke")
		a.generator = joke.NewOfflineGenerator()
	} else {
		gen, err := joke.NewGeminiGenerator(ctx, joke.GeminiConfig{
			APIKey: cfg.GoogleAPIKey,
			Model:  cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		a.generator = gen
	}

	executor := joke.NewExecutor(a.generator, joke.WithLogger(logger.With(slog.String("component", "executor"))))
	a.handler, err = handler.NewDefaultRequestHandler(executor, a.store,
		handler.WithQueueManager(queues),
		handler.WithPushConfigStore(a.configStore),
		handler.WithPushSender(a.sender),
		handler.WithLogger(logger.With(slog.String("component", "handler"))),
		handler.WithStreamIdleTimeout(cfg.StreamIdleTimeout),
	)
	if err != nil {
		return nil, err
	}

	opts := []jsonrpc.Option{jsonrpc.WithLogger(logger.With(slog.String("component", "jsonrpc")))}
	if signer != nil {
		opts = append(opts, jsonrpc.WithJWKS(signer))
	}
	if len(cfg.Auth.Tokens) > 0 {
		opts = append(opts, jsonrpc.WithAuthenticator(
			auth.NewBearerTokenAuthenticator(cfg.Auth.Tokens, cfg.Auth.AllowAnonymous)))
	}
	a.server, err = jsonrpc.NewServer(a.handler, joke.AgentCard(cfg.URL()), opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStores(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Driver {
	case config.StoreSQLite:
		db, err := task.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		store, err := task.NewDatabaseTaskStore(ctx, task.DatabaseTaskStoreConfig{DB: db, CreateTable: true})
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return err
		}
		a.store = store
		configStore, err := task.NewDatabasePushNotificationConfigStore(ctx, db)
		if err != nil {
			return err
		}
		a.configStore = configStore
		return nil
	default:
		a.store = task.NewInMemoryTaskStore()
		a.configStore = task.NewInMemoryPushNotificationConfigStore()
		return nil
	}
}

// Handler returns the HTTP handler serving the agent over HTTP/1.1 and cleartext HTTP/2.
func (a *app) Handler() http.Handler {
	return h2c.NewHandler(a.server, &http2.Server{})
}

// Start launches background work.
func (a *app) Start() {
	if a.janitor != nil {
		a.janitor.Start()
	}
}

// Drain stops background work and cancels the running invocations so open
// streams reach their final event. It can be called more than once.
func (a *app) Drain(ctx context.Context) error {
	var errs []error
	if a.janitor != nil {
		errs = append(errs, a.janitor.Stop(ctx))
	}
	if a.handler != nil {
		errs = append(errs, a.handler.Close(ctx))
	}
	return errors.Join(errs...)
}

// Close drains the app and releases resources in dependency order.
func (a *app) Close(ctx context.Context) error {
	errs := []error{a.Drain(ctx)}
	if a.sender != nil {
		errs = append(errs, a.sender.Close())
	}
	if c, ok := a.generator.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.configStore != nil {
		errs = append(errs, a.configStore.Close(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close(ctx))
	}
	return errors.Join(errs...)
}

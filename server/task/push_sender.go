// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-json-experiment/json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/internal/pool"
)

// NotificationTokenHeader carries the per-config token on every push request.
const NotificationTokenHeader = "X-A2A-Notification-Token"

// PushNotificationSender delivers task snapshots to the webhooks registered for a task.
type PushNotificationSender interface {
	// SendNotification posts task to every webhook registered for it.
	// Delivery failures are logged and never returned; an error means the
	// registered webhooks could not be looked up.
	SendNotification(ctx context.Context, task *a2a.Task) error

	// Close stops pending retries and waits for them to exit.
	Close() error
}

// HTTPPushSenderConfig holds configuration for [HTTPPushSender].
type HTTPPushSenderConfig struct {
	Client      *http.Client
	Timeout     time.Duration
	ConfigStore PushNotificationConfigStore
	Logger      *slog.Logger
	// Signer, when set, adds a JWT over the payload as a bearer token to
	// webhooks that do not configure their own credentials.
	Signer *JWTSigner
	// MaxRetries is how many times a failed delivery is retried in the
	// background. Zero delivers at most once.
	MaxRetries int
	// RetryInitialInterval and RetryMaxInterval bound the backoff between retries.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	// Meter records delivery counters. It defaults to the global meter provider.
	Meter metric.Meter
}

// HTTPPushSender is a [PushNotificationSender] that POSTs JSON over HTTP.
type HTTPPushSender struct {
	client      *http.Client
	timeout     time.Duration
	configStore PushNotificationConfigStore
	logger      *slog.Logger
	signer      *JWTSigner

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration

	deliveries metric.Int64Counter
	retries    metric.Int64Counter

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ PushNotificationSender = (*HTTPPushSender)(nil)

// NewHTTPPushSender creates a new HTTP push notification sender.
func NewHTTPPushSender(config HTTPPushSenderConfig) (*HTTPPushSender, error) {
	if config.ConfigStore == nil {
		return nil, fmt.Errorf("push notification config store cannot be nil")
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	initial := config.RetryInitialInterval
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxInterval := config.RetryMaxInterval
	if maxInterval <= 0 {
		maxInterval = 30 * time.Second
	}
	meter := config.Meter
	if meter == nil {
		meter = otel.Meter("github.com/go-a2a/jokeagent/server/task")
	}

	deliveries, err := meter.Int64Counter("a2a.push.deliveries",
		metric.WithDescription("Count of push notification delivery attempts by outcome"),
	)
	if err != nil {
		otel.Handle(err)
		deliveries = noop.Int64Counter{}
	}
	retries, err := meter.Int64Counter("a2a.push.retries",
		metric.WithDescription("Count of push notification deliveries scheduled for retry"),
	)
	if err != nil {
		otel.Handle(err)
		retries = noop.Int64Counter{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPPushSender{
		client:          client,
		timeout:         timeout,
		configStore:     config.ConfigStore,
		logger:          logger,
		signer:          config.Signer,
		maxRetries:      config.MaxRetries,
		initialInterval: initial,
		maxInterval:     maxInterval,
		deliveries:      deliveries,
		retries:         retries,
		baseCtx:         ctx,
		cancel:          cancel,
	}, nil
}

// SendNotification implements [PushNotificationSender].
//
// Webhooks are called concurrently and each receives exactly one attempt
// before SendNotification returns. Failed attempts are retried in the
// background when MaxRetries is set, so later notifications are never held
// back by them.
func (s *HTTPPushSender) SendNotification(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	configs, err := s.configStore.GetInfo(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("fetch push notification configs for task %s: %w", task.ID, err)
	}
	if len(configs) == 0 {
		return nil
	}

	buf := pool.Bytes.Get()
	defer pool.Bytes.Put(buf)
	if err := json.MarshalWrite(buf, task); err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	payload := bytes.Clone(buf.Bytes())

	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range configs {
		g.Go(func() error {
			err := s.dispatch(gctx, task.ID, cfg, payload, 1)
			if err != nil && s.maxRetries > 0 && !isPermanent(err) {
				s.scheduleRetry(task.ID, cfg, payload)
			}
			return nil
		})
	}
	return g.Wait()
}

// dispatch performs one delivery attempt and logs its outcome.
func (s *HTTPPushSender) dispatch(ctx context.Context, taskID string, cfg *a2a.PushNotificationConfig, payload []byte, attempt int) error {
	err := s.post(ctx, cfg, payload)

	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.ErrorContext(ctx, "push notification failed",
			slog.String("task_id", taskID),
			slog.String("url", cfg.URL),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	} else {
		s.logger.InfoContext(ctx, "push notification sent",
			slog.String("task_id", taskID),
			slog.String("url", cfg.URL),
			slog.Int("attempt", attempt))
	}
	s.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return err
}

func (s *HTTPPushSender) post(ctx context.Context, cfg *a2a.PushNotificationConfig, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "jokeagent-push-notification-sender")
	if cfg.Token != "" {
		req.Header.Set(NotificationTokenHeader, cfg.Token)
	}
	if err := s.authenticate(req, cfg.Authentication, payload); err != nil {
		return backoff.Permanent(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

func (s *HTTPPushSender) authenticate(req *http.Request, auth *a2a.PushNotificationAuthenticationInfo, payload []byte) error {
	if auth != nil && auth.Credentials != "" {
		for _, scheme := range auth.Schemes {
			switch strings.ToLower(scheme) {
			case "bearer":
				req.Header.Set("Authorization", "Bearer "+auth.Credentials)
				return nil
			case "basic":
				req.Header.Set("Authorization", "Basic "+auth.Credentials)
				return nil
			}
		}
		return fmt.Errorf("unsupported authentication schemes %v", auth.Schemes)
	}

	if s.signer != nil {
		token, err := s.signer.Sign(payload)
		if err != nil {
			return fmt.Errorf("sign payload: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

func (s *HTTPPushSender) scheduleRetry(taskID string, cfg *a2a.PushNotificationConfig, payload []byte) {
	s.retries.Add(s.baseCtx, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.initialInterval
		b.MaxInterval = s.maxInterval

		timer := time.NewTimer(b.NextBackOff())
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.baseCtx.Done():
			return
		}

		attempt := 1
		_, _ = backoff.Retry(s.baseCtx, func() (struct{}, error) {
			attempt++
			return struct{}{}, s.dispatch(s.baseCtx, taskID, cfg, payload, attempt)
		}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.maxRetries)))
	}()
}

// Close implements [PushNotificationSender].
func (s *HTTPPushSender) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}

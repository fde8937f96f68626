package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/support-assistant/internal/core/domain"
	"github.com/kirillkom/support-assistant/internal/infrastructure/resilience"
)

// EventBus publishes pipeline events as JSON on one subject and lets the
// telemetry worker consume them through a queue group.
type EventBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*EventBus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("support-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &EventBus{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (b *EventBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *EventBus) PublishEvent(ctx context.Context, event domain.PipelineEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode pipeline event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporaryIfNeeded("nats publish", err, classifyNATSError)
}

// Observe forwards the event to the bus; publish failures are logged only.
func (b *EventBus) Observe(ctx context.Context, event domain.PipelineEvent) {
	if err := b.PublishEvent(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "pipeline_event_publish_failed", "event", string(event.Type), "error", err)
	}
}

type EventHandler func(ctx context.Context, event domain.PipelineEvent) error

// SubscribeEvents blocks until ctx is done, then drains the subscription.
// Messages that are not valid events go to onDecodeError.
func (b *EventBus) SubscribeEvents(ctx context.Context, group string, handler EventHandler, onDecodeError func(error)) error {
	sub, err := b.conn.QueueSubscribe(b.subject, group, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		if err := dispatch(ctx, msg.Data, handler); err != nil {
			if domain.IsKind(err, domain.ErrMalformedResponse) {
				if onDecodeError != nil {
					onDecodeError(err)
				}
			}
			b.logger.Error("event_handler_failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func dispatch(ctx context.Context, data []byte, handler EventHandler) error {
	event, err := decodeEvent(data)
	if err != nil {
		return err
	}
	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	return handler(handlerCtx, event)
}

func decodeEvent(data []byte) (domain.PipelineEvent, error) {
	var event domain.PipelineEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.PipelineEvent{}, domain.WrapError(domain.ErrMalformedResponse, "decode pipeline event", err)
	}
	if event.Type == "" {
		return domain.PipelineEvent{}, domain.WrapError(domain.ErrMalformedResponse, "decode pipeline event", fmt.Errorf("missing event type"))
	}
	return event, nil
}

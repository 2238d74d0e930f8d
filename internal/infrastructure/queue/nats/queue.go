package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
	"github.com/kirillkom/fax-review-queue/internal/infrastructure/resilience"
)

const (
	DefaultDecidedSubject = "fax.decided"
	DefaultFiledSubject   = "fax.filed"
	filedQueueGroup       = "fax-workers"
)

// FiledEvent is sent by the downstream EHR/filing system once a fax has been
// stored in the patient chart.
type FiledEvent struct {
	FaxID    string    `json:"fax_id"`
	FiledBy  string    `json:"filed_by,omitempty"`
	FiledAt  time.Time `json:"filed_at,omitempty"`
	Location string    `json:"location,omitempty"`
}

type Queue struct {
	conn           *nats.Conn
	decidedSubject string
	filedSubject   string
	executor       *resilience.Executor
	logger         *slog.Logger
}

type Options struct {
	DecidedSubject       string
	FiledSubject         string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
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
		nats.Name("fax-review-queue"),
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
	return newQueue(conn, options, logger), nil
}

func newQueue(conn *nats.Conn, options Options, logger *slog.Logger) *Queue {
	decided := options.DecidedSubject
	if decided == "" {
		decided = DefaultDecidedSubject
	}
	filed := options.FiledSubject
	if filed == "" {
		filed = DefaultFiledSubject
	}
	return &Queue{
		conn:           conn,
		decidedSubject: decided,
		filedSubject:   filed,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDecision(ctx context.Context, decision domain.FaxDecision) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal fax decision: %w", err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.decidedSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeFiled consumes filing confirmations until ctx is cancelled, then
// drains the subscription.
func (q *Queue) SubscribeFiled(ctx context.Context, handler func(context.Context, FiledEvent) error) error {
	sub, err := q.conn.QueueSubscribe(q.filedSubject, filedQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := DecodeFiledEvent(msg.Data)
		if err != nil {
			q.logger.Warn("fax_filed_event_invalid", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			q.logger.Error("fax_filed_handler_failed", "fax_id", event.FaxID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// DecodeFiledEvent accepts either a JSON FiledEvent or a bare fax id.
func DecodeFiledEvent(data []byte) (FiledEvent, error) {
	trimmed := string(data)
	if trimmed == "" {
		return FiledEvent{}, fmt.Errorf("empty fax.filed payload")
	}
	if trimmed[0] != '{' {
		return FiledEvent{FaxID: trimmed}, nil
	}
	var event FiledEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return FiledEvent{}, fmt.Errorf("decode fax.filed payload: %w", err)
	}
	if event.FaxID == "" {
		return FiledEvent{}, fmt.Errorf("fax.filed payload has no fax_id")
	}
	return event, nil
}

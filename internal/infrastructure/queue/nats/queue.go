package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
	"github.com/kirillkom/hybrid-retriever/internal/infrastructure/resilience"
)

// Publisher emits one event per completed retrieval so downstream
// consumers (answer synthesis, quality analytics) can observe
// retrieval without re-querying. Outcomes themselves are never
// persisted here; the event is a compact summary.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
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

	conn, err := nats.Connect(
		url,
		nats.Name("hybrid-retriever"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type outcomeEvent struct {
	EventID       string             `json:"event_id"`
	Query         string             `json:"query"`
	Strategy      string             `json:"strategy"`
	Confidence    float64            `json:"confidence"`
	ResultCount   int                `json:"result_count"`
	FailedSources []string           `json:"failed_sources,omitempty"`
	SourceLatency map[string]float64 `json:"source_latency_ms"`
	EmittedAt     time.Time          `json:"emitted_at"`
}

func (p *Publisher) PublishOutcome(ctx context.Context, outcome *domain.Outcome) error {
	event := outcomeEvent{
		EventID:       uuid.NewString(),
		Query:         outcome.Query,
		Strategy:      outcome.Strategy,
		Confidence:    outcome.Confidence,
		ResultCount:   len(outcome.Results),
		SourceLatency: outcome.LatencyMillis(),
		EmittedAt:     time.Now().UTC(),
	}
	for _, source := range outcome.FailedSources() {
		event.FailedSources = append(event.FailedSources, source.String())
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		return p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	}
	return call(ctx)
}

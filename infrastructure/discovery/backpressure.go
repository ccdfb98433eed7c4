package discovery

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/R3E-Network/intent-solver/domain/intent"
	"github.com/R3E-Network/intent-solver/infrastructure/metrics"
	"github.com/R3E-Network/intent-solver/pkg/logger"
)

// BoundedSink is the engine's intent inbox: a fixed-capacity channel
// guarded by a rate limiter. Offer never blocks past offerTimeout; an
// item that cannot be enqueued in time is dropped and logged rather
// than stalling the source that produced it, matching the inbox
// contract Discovery sources are built against.
type BoundedSink struct {
	ch           chan intent.Intent
	limiter      *rate.Limiter
	offerTimeout time.Duration
	log          *logger.Logger

	metric  *metrics.Metrics
	service string
}

// BoundedSinkConfig configures a BoundedSink's capacity and admission
// rate.
type BoundedSinkConfig struct {
	Capacity          int
	RequestsPerSecond float64
	Burst             int
	OfferTimeout      time.Duration
}

// DefaultBoundedSinkConfig mirrors infrastructure/ratelimit's own
// defaults, scaled down: Discovery admits intents, not HTTP requests,
// so a lower steady rate with a small burst is enough headroom for a
// burst of on-chain events in one block.
func DefaultBoundedSinkConfig() BoundedSinkConfig {
	return BoundedSinkConfig{
		Capacity:          256,
		RequestsPerSecond: 50,
		Burst:             100,
		OfferTimeout:      200 * time.Millisecond,
	}
}

// NewBoundedSink builds a BoundedSink. log receives a warning for every
// dropped intent, carrying its id and source.
func NewBoundedSink(cfg BoundedSinkConfig, log *logger.Logger) *BoundedSink {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = 200 * time.Millisecond
	}
	if log == nil {
		log = logger.NewDefault("discovery")
	}

	return &BoundedSink{
		ch:           make(chan intent.Intent, cfg.Capacity),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		offerTimeout: cfg.OfferTimeout,
		log:          log,
	}
}

// Offer admits i if the rate limiter allows it and the inbox has room
// within offerTimeout. It never returns an error for a drop: dropping is
// the documented behavior, not a failure the caller must handle.
func (b *BoundedSink) Offer(ctx context.Context, i intent.Intent) error {
	if !b.limiter.Allow() {
		b.drop(i, "rate limit exceeded")
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.offerTimeout)
	defer cancel()

	select {
	case b.ch <- i:
		if b.metric != nil {
			b.metric.RecordIntentDiscovered(b.service, string(i.Source))
		}
		return nil
	case <-timeoutCtx.Done():
		b.drop(i, "inbox full")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *BoundedSink) drop(i intent.Intent, reason string) {
	b.log.WithFields(map[string]interface{}{
		"intent_id": i.ID,
		"source":    string(i.Source),
		"standard":  i.Standard,
		"reason":    reason,
	}).Warn("discovery: dropping intent")
	if b.metric != nil {
		b.metric.RecordIntentDropped(b.service, reason)
	}
}

// WithMetrics attaches a Metrics instance for per-offer instrumentation;
// a BoundedSink with no Metrics attached simply skips recording.
func (b *BoundedSink) WithMetrics(m *metrics.Metrics, service string) *BoundedSink {
	b.metric = m
	b.service = service
	return b
}

// Intents exposes the inbox for the engine to range over.
func (b *BoundedSink) Intents() <-chan intent.Intent {
	return b.ch
}

// Close signals no further sends will occur. Callers must ensure all
// Source goroutines writing to this sink have stopped before calling
// Close; closing while a Source is still mid-Offer will panic it.
func (b *BoundedSink) Close() {
	close(b.ch)
}

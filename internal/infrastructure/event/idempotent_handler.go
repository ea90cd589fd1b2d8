package event

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bomsync/internal/domain/shared"
)

// DefaultDedupeTTL covers the redelivery window of platform order webhooks
const DefaultDedupeTTL = 24 * time.Hour

// IdempotencyMetrics counts what the idempotent wrapper did
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// IdempotencyStats is a snapshot of IdempotencyMetrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// Stats returns a snapshot of the counters
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotentHandler drops redeliveries of an event it has already seen.
// Events implementing shared.IdempotencyKeyed are keyed by their business key,
// everything else by event ID.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupeTTL sets how long a key stays claimed. Non-positive values keep the default.
func WithDedupeTTL(ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if ttl > 0 {
			h.ttl = ttl
		}
	}
}

// WithoutDedupe passes every event through to the wrapped handler
func WithoutDedupe() IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.enabled = false
	}
}

// WithIdempotencyMetrics shares a metrics collector between wrappers
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler wraps handler with duplicate detection backed by store
func NewIdempotentHandler(handler shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     DefaultDedupeTTL,
		enabled: true,
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes event unless its key was already marked within the TTL.
// A store failure is logged and the event is processed anyway.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.enabled {
		return h.handler.Handle(ctx, event)
	}

	key := dedupeKey(event)
	log := h.logger.With(
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("dedupe_key", key),
	)

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	switch {
	case err != nil:
		log.Warn("failed to check idempotency, processing anyway", zap.Error(err))
	case !isNew:
		h.metrics.EventsDuplicate.Add(1)
		log.Info("duplicate event skipped")
		return nil
	}

	// The key stays marked on failure and expires with the TTL.
	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		return err
	}
	h.metrics.EventsProcessed.Add(1)
	return nil
}

// Metrics returns the counters of this wrapper
func (h *IdempotentHandler) Metrics() *IdempotencyMetrics {
	return h.metrics
}

func dedupeKey(event shared.DomainEvent) string {
	if keyed, ok := event.(shared.IdempotencyKeyed); ok {
		if key := keyed.IdempotencyKey(); key != "" {
			return key
		}
	}
	return event.EventID().String()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)

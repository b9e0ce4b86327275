package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viralforge/invoicing-accounts/internal/ports"
)

// LoggingPublisher records events without delivering them.
// Payloads carry codes and links, so only their size is logged.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger.With("module", "events.logging_publisher", "layer", "adapter")}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	p.logger.InfoContext(ctx, "event published",
		"operation", "publish_event",
		"outcome", "success",
		"event_type", eventType,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}

// FanoutPublisher hands each event to every sink. It fails if any sink fails,
// so the outbox row is retried; sinks must tolerate redelivery.
type FanoutPublisher struct {
	sinks []ports.EventPublisher
}

func NewFanoutPublisher(sinks ...ports.EventPublisher) *FanoutPublisher {
	kept := make([]ports.EventPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &FanoutPublisher{sinks: kept}
}

func (p *FanoutPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	var errs []error
	for i, sink := range p.sinks {
		if err := sink.Publish(ctx, eventType, payload, partitionKey); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len reports how many sinks are attached.
func (p *FanoutPublisher) Len() int { return len(p.sinks) }

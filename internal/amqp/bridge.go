package amqp

import (
	"context"
	"errors"
	"time"

	"spendsight/internal/events"
	"spendsight/internal/log"
)

// Transport is the broker side of the bridge.
type Transport interface {
	Publish(ctx context.Context, e events.Event) error
	Consume(ctx context.Context, handler func(events.Event) error) error
}

type reconnector interface {
	Reconnect() error
}

// Bridge mirrors refresh events between the local bus and the broker.
// Events whose Source is this process are forwarded out; events arriving
// from the broker with that same Source are echoes and are skipped, so
// nothing is forwarded twice.
type Bridge struct {
	transport Transport
	bus       *events.Bus
	source    string
	logger    *log.Logger
	backoff   func(attempt int) time.Duration
}

// NewBridge links bus to transport. source must match the Source the local
// publishers stamp on their events.
func NewBridge(transport Transport, bus *events.Bus, source string, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Bridge{
		transport: transport,
		bus:       bus,
		source:    source,
		logger:    logger.WithComponent(log.ComponentAMQP),
		backoff:   exponentialBackoff,
	}
}

// Run blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	ch, cancel := b.bus.Subscribe(16)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.forward(ctx, ch)
	}()

	b.consume(ctx)
	<-done
	return ctx.Err()
}

func (b *Bridge) forward(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.Source != b.source {
				continue
			}
			if err := b.transport.Publish(ctx, e); err != nil {
				b.logger.WarnContext(ctx, "Forward refresh event failed",
					log.FieldEventKind, e.Kind,
					log.FieldError, err)
			}
		}
	}
}

func (b *Bridge) consume(ctx context.Context) {
	for attempt := 0; ctx.Err() == nil; attempt++ {
		err := b.transport.Consume(ctx, b.deliver)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		wait := b.backoff(attempt)
		b.logger.WarnContext(ctx, "Refresh consumer stopped, retrying",
			log.FieldError, err,
			"retry_in", wait.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		if r, ok := b.transport.(reconnector); ok {
			if err := r.Reconnect(); err != nil {
				b.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, err)
				continue
			}
			attempt = -1
		}
	}
}

func (b *Bridge) deliver(e events.Event) error {
	if e.Source == b.source {
		return nil
	}
	b.bus.Publish(e)
	return nil
}

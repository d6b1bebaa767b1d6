package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

// Dispatcher routes rendered messages to the sender registered for each
// platform, retrying transient delivery failures.
type Dispatcher struct {
	senders map[domain.Platform]ports.Sender
	order   []domain.Platform
	retry   resilience.Policy
	dryRun  bool
	logger  *slog.Logger
}

func NewDispatcher(senders []ports.Sender, dryRun bool, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[domain.Platform]ports.Sender, len(senders)),
		retry: resilience.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
		dryRun: dryRun,
		logger: logger,
	}
	for _, s := range senders {
		if _, ok := d.senders[s.Platform()]; ok {
			continue
		}
		d.senders[s.Platform()] = s
		d.order = append(d.order, s.Platform())
	}
	return d
}

// Platforms lists registered platforms in registration order.
func (d *Dispatcher) Platforms() []domain.Platform {
	return append([]domain.Platform(nil), d.order...)
}

// Send delivers one rendered message. In dry-run mode the payload is logged
// and no network call happens.
func (d *Dispatcher) Send(ctx context.Context, msg domain.RenderedMessage) error {
	sender, ok := d.senders[msg.Platform]
	if !ok {
		return &domain.NotifyError{
			Platform: msg.Platform,
			Err:      fmt.Errorf("no sender registered"),
		}
	}

	if d.dryRun {
		d.logger.Info("dry run, skipping delivery",
			"platform", msg.Platform, "payload_bytes", len(msg.Payload))
		return nil
	}

	err := d.retry.Do(ctx, func(ctx context.Context) error {
		return sender.Send(ctx, msg)
	})
	if err != nil {
		return &domain.NotifyError{
			Platform:    msg.Platform,
			Destination: msg.Destination,
			Err:         err,
		}
	}

	d.logger.Info("message delivered", "platform", msg.Platform)
	return nil
}

// SendTest pushes a test message through every registered sender and returns
// the first failure.
func (d *Dispatcher) SendTest(ctx context.Context) error {
	for _, platform := range d.order {
		sender := d.senders[platform]
		if d.dryRun {
			d.logger.Info("dry run, skipping test message", "platform", platform)
			continue
		}
		if err := sender.SendTest(ctx); err != nil {
			return &domain.NotifyError{Platform: platform, Err: err}
		}
		d.logger.Info("test message delivered", "platform", platform)
	}
	return nil
}

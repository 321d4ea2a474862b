// Package notify reports deploy outcomes to an external sink.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oar-cd/pushdeploy/domain"
)

// Sink delivers a formatted message somewhere a human will see it
type Sink interface {
	Send(ctx context.Context, message string) error
}

// Notifier formats outcomes and sends them in the background, one at a
// time in the order Notify was called. Sink failures are logged and never
// returned to the caller.
type Notifier struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	queue    []domain.Outcome
	draining bool
	wg       sync.WaitGroup
}

// New creates a notifier. A nil sink disables delivery; outcomes are then
// only logged.
func New(sink Sink, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		sink:    sink,
		timeout: timeout,
		logger:  logger.With("layer", "notify"),
	}
}

// Enabled reports whether outcomes are delivered to a sink
func (n *Notifier) Enabled() bool {
	return n.sink != nil
}

// Notify queues the outcome without blocking the caller
func (n *Notifier) Notify(outcome domain.Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(n.queue, outcome)
	if n.draining {
		return
	}
	n.draining = true
	n.wg.Add(1)
	go n.drain()
}

// Wait blocks until every notification queued so far has been attempted
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) drain() {
	defer n.wg.Done()
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.draining = false
			n.mu.Unlock()
			return
		}
		outcome := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.deliver(outcome)
	}
}

func (n *Notifier) deliver(outcome domain.Outcome) {
	logger := n.logger.With(
		"operation", "notify",
		"outcome", outcome.Kind.String(),
		"repository", outcome.Repository)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Notification sink panicked", "panic", fmt.Sprint(r))
		}
	}()

	if n.sink == nil {
		logger.Debug("Notifications disabled, outcome not sent")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.sink.Send(ctx, Format(outcome)); err != nil {
		logger.Warn("Failed to send notification", "error", err)
		return
	}
	logger.Debug("Notification sent")
}

// Package dispatch fans one orchestration request out to a workflow's
// participant subset concurrently and joins every outcome, good or bad.
package dispatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"streetwise/internal/comms"
	"streetwise/internal/logging"
	"streetwise/internal/protocol"
	"streetwise/internal/workflow"
)

// Sender is the outbound call surface the dispatcher fans out over.
// *comms.Handler satisfies it.
type Sender interface {
	Send(ctx context.Context, envelope protocol.Envelope, timeout time.Duration) comms.Result
}

type Dispatcher struct {
	sender  Sender
	stamper *protocol.Stamper
	timeout time.Duration
	logger  *logging.Logger
	tracer  trace.Tracer
}

func New(sender Sender, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = comms.DefaultTimeout
	}
	return &Dispatcher{
		sender:  sender,
		stamper: protocol.NewStamper(),
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("streetwise/dispatch"),
	}
}

// Dispatch issues one call per participant concurrently and blocks
// until all of them settle. Partial or even total participant failure
// is not an error here; the result set carries the degradation and the
// synthesis engine decides what it means. The only error cases are a
// payload the workflow cannot build, an envelope failing validation
// before dispatch, and cancellation of the orchestration request
// itself.
func (d *Dispatcher) Dispatch(ctx context.Context, w workflow.Workflow, user workflow.UserContext) ([]comms.Result, error) {
	payloads, err := w.Build(user)
	if err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.fanout", trace.WithAttributes(
		attribute.String("workflow.tag", w.Tag),
		attribute.Int("workflow.participants", len(w.Participants)),
	))
	defer span.End()

	envelopes := make([]protocol.Envelope, len(w.Participants))
	priority := user.RequestPriority()
	for i, participantID := range w.Participants {
		envelope := d.stamper.NewRequest(participantID, priority, payloads[participantID])
		if err := protocol.Validate(envelope); err != nil {
			return nil, err
		}
		envelopes[i] = envelope
	}

	results := make([]comms.Result, len(envelopes))
	var wg sync.WaitGroup
	for i, envelope := range envelopes {
		wg.Add(1)
		go func(index int, envelope protocol.Envelope) {
			defer wg.Done()
			results[index] = d.sender.Send(ctx, envelope, d.timeout)
		}(i, envelope)
	}
	wg.Wait()

	// A cancelled orchestration request yields a terminal failure, not
	// a partial synthesis.
	if err := ctx.Err(); err != nil {
		span.AddEvent("dispatch.cancelled")
		return nil, err
	}

	if d.logger != nil {
		degraded := 0
		for _, result := range results {
			if !result.OK() {
				degraded++
			}
		}
		d.logger.Info("dispatch joined", map[string]string{
			"workflow":     w.Tag,
			"participants": strconv.Itoa(len(results)),
			"degraded":     strconv.Itoa(degraded),
		})
	}
	return results, nil
}

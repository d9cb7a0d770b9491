package comms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"streetwise/internal/logging"
	"streetwise/internal/protocol"
	"streetwise/internal/registry"
)

const (
	receivePath     = "/a2a/receive"
	healthPath      = "/health"
	maxResponseBody = 1 << 20

	DefaultTimeout        = 30 * time.Second
	DefaultMaxRetries     = 2
	DefaultBackoffInitial = 250 * time.Millisecond
	DefaultBackoffMax     = 2 * time.Second
)

// Options tunes the handler. Zero values fall back to the package
// defaults; the per-call timeout itself is always caller-supplied.
type Options struct {
	Client         *http.Client
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Logger         *logging.Logger
}

// Handler delivers request envelopes to participant endpoints resolved
// through the registry.
type Handler struct {
	registry       *registry.Registry
	client         *http.Client
	maxRetries     int
	backoffInitial time.Duration
	backoffMax     time.Duration
	logger         *logging.Logger
	tracer         trace.Tracer
}

func NewHandler(reg *registry.Registry, options Options) *Handler {
	client := options.Client
	if client == nil {
		client = &http.Client{}
	}
	maxRetries := options.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	if options.MaxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	backoffInitial := options.BackoffInitial
	if backoffInitial <= 0 {
		backoffInitial = DefaultBackoffInitial
	}
	backoffMax := options.BackoffMax
	if backoffMax <= 0 {
		backoffMax = DefaultBackoffMax
	}
	return &Handler{
		registry:       reg,
		client:         client,
		maxRetries:     maxRetries,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
		logger:         options.Logger,
		tracer:         otel.Tracer("streetwise/comms"),
	}
}

// Send delivers one envelope and blocks until a response, a timeout, or
// a transport failure. The timeout applies per attempt; unreachable and
// timeout outcomes are retried with capped exponential backoff, error
// outcomes never are.
func (h *Handler) Send(ctx context.Context, envelope protocol.Envelope, timeout time.Duration) Result {
	start := time.Now()
	ctx, span := h.tracer.Start(ctx, "comms.send", trace.WithAttributes(
		attribute.String("participant.id", envelope.Receiver),
		attribute.String("message.id", envelope.MessageID),
	))
	defer span.End()

	result := h.send(ctx, envelope, timeout)
	result.Latency = time.Since(start)
	span.SetAttributes(attribute.String("participant.status", string(result.Status)))

	if h.logger != nil {
		fields := map[string]string{
			"participant": result.ParticipantID,
			"status":      string(result.Status),
			"latency_ms":  strconv.FormatInt(result.Latency.Milliseconds(), 10),
		}
		if result.ErrorDetail != "" {
			fields["detail"] = result.ErrorDetail
		}
		if result.OK() {
			h.logger.Debug("participant responded", fields)
		} else {
			h.logger.Warn("participant call degraded", fields)
		}
	}
	return result
}

func (h *Handler) send(ctx context.Context, envelope protocol.Envelope, timeout time.Duration) Result {
	result := Result{ParticipantID: envelope.Receiver}

	entry, ok := h.registry.Lookup(envelope.Receiver)
	if !ok {
		result.Status = StatusUnreachable
		result.ErrorDetail = fmt.Sprintf("participant %q not registered", envelope.Receiver)
		return result
	}

	body, err := protocol.Encode(envelope)
	if err != nil {
		result.Status = StatusError
		result.ErrorDetail = err.Error()
		return result
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = h.backoffInitial
	policy.MaxInterval = h.backoffMax
	policy.MaxElapsedTime = 0
	policy.Reset()

	for attempt := 0; ; attempt++ {
		result = h.attempt(ctx, entry.Endpoint+receivePath, envelope, body, timeout)
		if result.Status == StatusOK || result.Status == StatusError {
			return result
		}
		if attempt >= h.maxRetries || ctx.Err() != nil {
			return result
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return result
		}
		trace.SpanFromContext(ctx).AddEvent("comms.retry", trace.WithAttributes(
			attribute.Int("attempt", attempt+1),
			attribute.String("outcome", string(result.Status)),
		))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result
		case <-timer.C:
		}
	}
}

func (h *Handler) attempt(ctx context.Context, url string, envelope protocol.Envelope, body []byte, timeout time.Duration) Result {
	result := Result{ParticipantID: envelope.Receiver}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("build request: %v", err)
		return result
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := h.client.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			result.Status = StatusTimeout
			result.ErrorDetail = fmt.Sprintf("no response within %s", timeout)
			return result
		}
		if errors.Is(err, context.Canceled) {
			result.Status = StatusTimeout
			result.ErrorDetail = "request cancelled"
			return result
		}
		result.Status = StatusUnreachable
		result.ErrorDetail = err.Error()
		return result
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("unexpected status %d", response.StatusCode)
		return result
	}

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBody))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			result.Status = StatusTimeout
			result.ErrorDetail = fmt.Sprintf("no response within %s", timeout)
			return result
		}
		result.Status = StatusUnreachable
		result.ErrorDetail = fmt.Sprintf("read response: %v", err)
		return result
	}

	return classify(envelope, payload, result)
}

// classify turns a received body into a result. Semantic mismatches are
// a stable condition and map to StatusError so they are never retried.
func classify(request protocol.Envelope, payload []byte, result Result) Result {
	response, err := protocol.Decode(payload)
	if err != nil {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("malformed response envelope: %v", err)
		return result
	}
	if response.MessageType == protocol.MessageTypeError {
		result.Status = StatusError
		result.ErrorDetail = "participant returned an error envelope"
		return result
	}
	if response.MessageType != protocol.MessageTypeResponse {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("unexpected message_type %q", response.MessageType)
		return result
	}
	if response.Sender != request.Receiver {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("response sender %q does not match participant %q", response.Sender, request.Receiver)
		return result
	}
	if response.Receiver != request.Sender {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("response addressed to %q, not the coordinator", response.Receiver)
		return result
	}

	decoded, err := protocol.DecodeResponsePayload(response.Payload)
	if err != nil {
		result.Status = StatusError
		result.ErrorDetail = fmt.Sprintf("malformed response payload: %v", err)
		return result
	}
	result.Status = StatusOK
	result.Payload = decoded
	return result
}

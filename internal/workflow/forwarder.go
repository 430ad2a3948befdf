package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/osd-exam/backend-registration/internal/obs"
	"github.com/osd-exam/backend-registration/internal/resilience"
	"github.com/osd-exam/backend-registration/internal/submission"
)

// maxResponseBytes bounds how much of a webhook response is read for
// interpretation.
const maxResponseBytes = 1 << 20

// Forwarder posts enriched documents to the downstream workflow webhooks and
// interprets their loosely-typed acknowledgments.
type Forwarder struct {
	RegistrationURL string
	PaymentProofURL string
	HTTP            resilience.HTTPClient
	Logger          zerolog.Logger
}

// NewForwarder builds a Forwarder with a traced, circuit-broken HTTP client
// and an explicit per-request timeout. Delivery retries beyond the in-process
// attempts are left to the task queue.
func NewForwarder(registrationURL, paymentProofURL string, timeout time.Duration, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		RegistrationURL: registrationURL,
		PaymentProofURL: paymentProofURL,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("workflow-webhook"),
			MaxAttempts: 2,
			BaseBackoff: 500 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		Logger: logger,
	}
}

// ForwardRegistration posts a processed registration document.
func (f *Forwarder) ForwardRegistration(ctx context.Context, doc ProcessedRegistration) (submission.Outcome, error) {
	return f.post(ctx, "registration", f.RegistrationURL, doc)
}

// ForwardPaymentProof posts a processed payment-proof document.
func (f *Forwarder) ForwardPaymentProof(ctx context.Context, doc ProcessedPaymentProof) (submission.Outcome, error) {
	return f.post(ctx, "payment_proof", f.PaymentProofURL, doc)
}

func (f *Forwarder) post(ctx context.Context, kind, url string, doc any) (submission.Outcome, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return submission.Outcome{}, fmt.Errorf("marshal %s document: %w", kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return submission.Outcome{}, fmt.Errorf("build %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := f.HTTP.Do(ctx, req)
	if err != nil {
		f.observe(kind, "transport_error", start)
		return submission.Outcome{}, fmt.Errorf("post %s webhook: %w", kind, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		f.observe(kind, "transport_error", start)
		return submission.Outcome{}, fmt.Errorf("read %s webhook response: %w", kind, err)
	}

	outcome, err := submission.InterpretResponse(resp.StatusCode, raw)
	if err != nil {
		f.observe(kind, "rejected", start)
		f.Logger.Warn().Err(err).Str("kind", kind).Int("status", resp.StatusCode).Msg("webhook did not acknowledge")
		return submission.Outcome{}, err
	}
	f.observe(kind, "ok", start)
	return outcome, nil
}

func (f *Forwarder) observe(kind, result string, start time.Time) {
	if obs.WebhookForwardTotal != nil {
		obs.WebhookForwardTotal.WithLabelValues(kind, result).Inc()
	}
	if obs.WebhookForwardLatency != nil {
		obs.WebhookForwardLatency.WithLabelValues(kind).Observe(float64(time.Since(start).Milliseconds()))
	}
}

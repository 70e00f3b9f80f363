package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// webhookRetryIntervals is the delay before each redelivery attempt.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature"

// WebhookPayload is the JSON body posted to each webhook URL.
type WebhookPayload struct {
	EventType string       `json:"event_type"`
	Data      domain.Event `json:"data"`
	Signature string       `json:"signature"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookSink posts events to the configured URLs. Delivery runs in the
// background with retries; Publish only fails if the event cannot be
// encoded.
type WebhookSink struct {
	urls       []string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	intervals  []time.Duration
	log        zerolog.Logger
}

// NewWebhookSink creates a webhook sink.
func NewWebhookSink(
	urls []string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) *WebhookSink {
	return &WebhookSink{
		urls:       urls,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		intervals:  webhookRetryIntervals,
		log:        log,
	}
}

// Name implements ports.EventPublisher.
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Publish signs evt and starts one delivery per URL.
func (s *WebhookSink) Publish(_ context.Context, evt domain.Event) error {
	if len(s.urls) == 0 {
		return nil
	}

	dataBytes, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	payload := WebhookPayload{
		EventType: string(evt.Type),
		Data:      evt,
		Signature: s.sigSvc.Sign(s.secret, string(dataBytes)),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	for _, url := range s.urls {
		go s.deliverWithRetries(url, payloadBytes, payload.Signature, evt.ID.String())
	}
	return nil
}

// deliverWithRetries attempts delivery until a 2xx or the schedule runs out.
func (s *WebhookSink) deliverWithRetries(url string, body []byte, signature, eventID string) {
	for attempt := 0; attempt <= len(s.intervals); attempt++ {
		if attempt > 0 {
			time.Sleep(s.intervals[attempt-1])
		}

		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.log.Error().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("webhook: failed to create request")
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(SignatureHeader, signature)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			s.log.Warn().Err(err).Str("event_id", eventID).Int("attempt", attempt+1).Msg("webhook: delivery failed")
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.log.Info().Str("event_id", eventID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: delivered")
			return
		}

		s.log.Warn().Str("event_id", eventID).Int("attempt", attempt+1).Int("status", resp.StatusCode).Msg("webhook: non-2xx response, retrying")
	}

	s.log.Error().Str("event_id", eventID).Str("url", url).Msg("webhook: all retry attempts exhausted")
}

// Package events posts run stage events to a callback URL.
package events

//go:generate mockgen -source=events.go -package=events -destination=events_mock.go

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ReconfigureIO/hlsflow/models"
	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-cleanhttp"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one stage transition of a run.
type Event struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Code      int       `json:"code"`
}

// PostRunEvent is the ledger form of e.
func (e Event) PostRunEvent() models.PostRunEvent {
	return models.PostRunEvent{Status: e.Status, Stage: e.Stage, Message: e.Message, Code: e.Code}
}

// EventService delivers events.
type EventService interface {
	Send(ctx context.Context, e Event) error
}

// NopService drops every event.
type NopService struct{}

func (NopService) Send(ctx context.Context, e Event) error { return nil }

// CallbackService posts events as JSON to URL. Events are idempotent, so
// failed deliveries are retried with exponential backoff.
type CallbackService struct {
	URL string
	// Token is sent as a bearer token when set.
	Token  string
	Client *http.Client
	// MaxElapsed bounds the time spent retrying one event.
	MaxElapsed time.Duration
}

// DefaultMaxElapsed is the retry budget of one event.
const DefaultMaxElapsed = time.Minute

// NewCallbackService returns a service posting to url with a pooled
// client.
func NewCallbackService(url, token string) *CallbackService {
	return &CallbackService{
		URL:        url,
		Token:      token,
		Client:     cleanhttp.DefaultPooledClient(),
		MaxElapsed: DefaultMaxElapsed,
	}
}

// ForRun returns a copy of s authenticating with a run's token.
func (s *CallbackService) ForRun(token string) EventService {
	c := *s
	c.Token = token
	return &c
}

// StatusError is a non-2xx callback response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("callback returned %d %s", e.Code, http.StatusText(e.Code))
}

func (s *CallbackService) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.MaxElapsed
	l := log.WithFields(log.Fields{"run": e.RunID, "status": e.Status})

	op := func() error {
		err := s.post(ctx, body)
		if se, ok := err.(*StatusError); ok && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.WithError(err).WithField("retry_in", wait).Warn("event delivery failed")
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}

func (s *CallbackService) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

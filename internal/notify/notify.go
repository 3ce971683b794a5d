// Package notify delivers session lifecycle events to configured
// webhooks. Delivery is best effort: a hook that fails is logged and
// skipped, never retried, and never blocks the pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/session"
)

// Event is the JSON payload posted to each webhook. Type is the
// session state that triggered it.
type Event struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	Requester   string    `json:"requester,omitempty"`
	Service     string    `json:"service"`
	Operation   string    `json:"operation"`
	ResourceIDs []string  `json:"resource_ids,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// FromSession renders the session's current state as an event.
func FromSession(s *session.Session) Event {
	ev := Event{
		Type:      string(s.State),
		SessionID: s.ID,
		Requester: s.Requester,
		Service:   s.Service,
		Operation: s.Operation,
		At:        s.UpdatedAt,
	}
	if s.Result != nil {
		ev.ResourceIDs = s.Result.ResourceIDs
		ev.Error = s.Result.ErrorText
	}
	return ev
}

// Hook is one webhook destination. An empty Events list subscribes to
// everything.
type Hook struct {
	Name    string
	URL     string
	Events  []string
	Headers map[string]string
}

func (h Hook) wants(eventType string) bool {
	if len(h.Events) == 0 {
		return true
	}
	for _, e := range h.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

var envPattern = regexp.MustCompile(`\{\{env\.(\w+)\}\}`)

// Substitute replaces {{env.X}} references at send time, so a rotated
// secret takes effect without a config reload.
func Substitute(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

type Notifier struct {
	hooks  []Hook
	client *http.Client
	log    *logrus.Entry
}

func New(hooks []Hook, logger *logrus.Logger) *Notifier {
	return &Notifier{
		hooks:  hooks,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logging.ForComponent(logger, "notify"),
	}
}

// Publish posts the event to every subscribed hook, in order.
func (n *Notifier) Publish(ctx context.Context, ev Event) {
	for _, h := range n.hooks {
		if !h.wants(ev.Type) {
			continue
		}
		if err := n.post(ctx, h, ev); err != nil {
			n.log.WithError(err).WithFields(logrus.Fields{
				"webhook": h.Name,
				"event":   ev.Type,
			}).Warn("webhook delivery failed")
			continue
		}
		n.log.WithFields(logrus.Fields{
			"webhook": h.Name,
			"event":   ev.Type,
			"session": ev.SessionID,
		}).Debug("webhook delivered")
	}
}

func (n *Notifier) post(ctx context.Context, h Hook, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Substitute(h.URL), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.Headers {
		req.Header.Set(k, Substitute(v))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/cloudwright/cloudwright/internal/catalog"
	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/session"
)

type capture struct {
	mu      sync.Mutex
	events  []Event
	headers []http.Header
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(status)
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestPublishDeliversEvent(t *testing.T) {
	var got capture
	srv := httptest.NewServer(got.handler(http.StatusOK))
	defer srv.Close()

	n := New([]Hook{{Name: "ops", URL: srv.URL}}, logging.Discard())
	n.Publish(context.Background(), Event{
		Type:        "succeeded",
		SessionID:   "sess-1",
		Requester:   "alice",
		Service:     "ec2",
		Operation:   "create",
		ResourceIDs: []string{"i-0abc123"},
	})

	if got.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", got.count())
	}
	ev := got.events[0]
	if ev.Type != "succeeded" || ev.SessionID != "sess-1" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Service != "ec2" || ev.Operation != "create" {
		t.Errorf("service/operation = %s/%s", ev.Service, ev.Operation)
	}
	if len(ev.ResourceIDs) != 1 || ev.ResourceIDs[0] != "i-0abc123" {
		t.Errorf("resource ids = %v", ev.ResourceIDs)
	}
	if ct := got.headers[0].Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestPublishHeaderTemplating(t *testing.T) {
	t.Setenv("NOTIFY_TEST_TOKEN", "s3cr3t")

	var got capture
	srv := httptest.NewServer(got.handler(http.StatusOK))
	defer srv.Close()

	n := New([]Hook{{
		Name:    "ops",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer {{env.NOTIFY_TEST_TOKEN}}"},
	}}, logging.Discard())
	n.Publish(context.Background(), Event{Type: "failed", SessionID: "sess-2"})

	if got.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", got.count())
	}
	if auth := got.headers[0].Get("Authorization"); auth != "Bearer s3cr3t" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestPublishEventFilter(t *testing.T) {
	var got capture
	srv := httptest.NewServer(got.handler(http.StatusOK))
	defer srv.Close()

	n := New([]Hook{{Name: "ops", URL: srv.URL, Events: []string{"succeeded"}}}, logging.Discard())
	n.Publish(context.Background(), Event{Type: "failed", SessionID: "sess-3"})
	n.Publish(context.Background(), Event{Type: "succeeded", SessionID: "sess-3"})

	if got.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", got.count())
	}
	if got.events[0].Type != "succeeded" {
		t.Errorf("delivered type = %q", got.events[0].Type)
	}
}

func TestPublishEmptyEventsSubscribesAll(t *testing.T) {
	var got capture
	srv := httptest.NewServer(got.handler(http.StatusOK))
	defer srv.Close()

	n := New([]Hook{{Name: "ops", URL: srv.URL}}, logging.Discard())
	for _, typ := range []string{"awaiting_confirmation", "succeeded", "failed", "cancelled"} {
		n.Publish(context.Background(), Event{Type: typ, SessionID: "sess-4"})
	}

	if got.count() != 4 {
		t.Errorf("deliveries = %d, want 4", got.count())
	}
}

func TestPublishContinuesPastFailingHook(t *testing.T) {
	var failing, healthy capture
	bad := httptest.NewServer(failing.handler(http.StatusInternalServerError))
	defer bad.Close()
	good := httptest.NewServer(healthy.handler(http.StatusOK))
	defer good.Close()

	n := New([]Hook{
		{Name: "bad", URL: bad.URL},
		{Name: "good", URL: good.URL},
	}, logging.Discard())
	n.Publish(context.Background(), Event{Type: "succeeded", SessionID: "sess-5"})

	if healthy.count() != 1 {
		t.Errorf("healthy hook deliveries = %d, want 1", healthy.count())
	}
}

func TestPublishUnreachableHook(t *testing.T) {
	n := New([]Hook{{Name: "gone", URL: "http://127.0.0.1:1/hook"}}, logging.Discard())
	n.Publish(context.Background(), Event{Type: "failed", SessionID: "sess-6"})
}

func TestSubstitute(t *testing.T) {
	t.Setenv("NOTIFY_TEST_HOST", "hooks.example.com")
	t.Setenv("NOTIFY_TEST_PATH", "ops")

	tests := []struct {
		in   string
		want string
	}{
		{"https://{{env.NOTIFY_TEST_HOST}}/{{env.NOTIFY_TEST_PATH}}", "https://hooks.example.com/ops"},
		{"no templates here", "no templates here"},
		{"{{env.NOTIFY_TEST_UNSET}}", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Substitute(tt.in); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromSession(t *testing.T) {
	s := session.New("alice", "spin up a web server", "ec2", "create")
	if err := s.MarkExtracted(catalog.ParameterSet{"instance_type": "t3.micro"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkValidated(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestConfirmation(); err != nil {
		t.Fatal(err)
	}

	ev := FromSession(s)
	if ev.Type != "awaiting_confirmation" {
		t.Errorf("type = %q, want awaiting_confirmation", ev.Type)
	}
	if ev.SessionID != s.ID || ev.Requester != "alice" {
		t.Errorf("identity fields = %+v", ev)
	}
	if ev.Service != "ec2" || ev.Operation != "create" {
		t.Errorf("service/operation = %s/%s", ev.Service, ev.Operation)
	}
	if ev.At.IsZero() {
		t.Error("At is zero")
	}

	if err := s.Confirm(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginExecution(); err != nil {
		t.Fatal(err)
	}
	if err := s.Succeed([]string{"i-0abc123", "i-0def456"}); err != nil {
		t.Fatal(err)
	}

	ev = FromSession(s)
	if ev.Type != "succeeded" {
		t.Errorf("type = %q, want succeeded", ev.Type)
	}
	if len(ev.ResourceIDs) != 2 {
		t.Errorf("resource ids = %v", ev.ResourceIDs)
	}

	s2 := session.New("bob", "delete the bucket", "s3", "delete")
	if err := s2.MarkExtracted(catalog.ParameterSet{"bucket": "logs"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s2.MarkValidated(nil); err != nil {
		t.Fatal(err)
	}
	if err := s2.RequestConfirmation(); err != nil {
		t.Fatal(err)
	}
	if err := s2.Confirm(); err != nil {
		t.Fatal(err)
	}
	if err := s2.BeginExecution(); err != nil {
		t.Fatal(err)
	}
	if err := s2.Fail("transient", "rate exceeded"); err != nil {
		t.Fatal(err)
	}

	ev = FromSession(s2)
	if ev.Type != "failed" {
		t.Errorf("type = %q, want failed", ev.Type)
	}
	if ev.Error != "rate exceeded" {
		t.Errorf("error = %q", ev.Error)
	}
}

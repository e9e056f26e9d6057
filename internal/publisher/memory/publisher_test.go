package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/webcapture/internal/capture"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "captures", capture.JobEvent{JobID: "j1", Status: capture.JobStatusComplete})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "other", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}

	events := pub.Events()
	if len(events) != 1 || events[0].JobID != "j1" {
		t.Fatalf("expected one job event, got %+v", events)
	}
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(errors.New("unavailable"))
	if _, err := pub.Publish(context.Background(), "t", "x"); err == nil {
		t.Fatal("expected publish error")
	}
	pub.FailWith(nil)
	if _, err := pub.Publish(context.Background(), "t", "x"); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
	if len(pub.Messages()) != 1 {
		t.Fatalf("failed publishes must not be recorded")
	}
}

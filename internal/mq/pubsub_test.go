package mq

import (
	"context"
	"testing"
)

func TestPubSubMessageKeepsAttributes(t *testing.T) {
	backend := &fakeBackend{}
	events, err := NewTaskEvents(New(backend), "task-events")
	if err != nil {
		t.Fatalf("NewTaskEvents returned error: %v", err)
	}
	if err := events.PublishTaskEvent(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("PublishTaskEvent returned error: %v", err)
	}
	sent := backend.published[0]

	outgoing := outgoingMessage(sent.data, sent.attrs)
	outgoing.ID = "ps-1"
	received := receivedMessage(outgoing)

	if received.ID != "ps-1" || received.Attributes[ContentTypeAttribute] != "application/json" {
		t.Fatalf("unexpected message %#v", received)
	}
	event, err := DecodeTaskEvent(received)
	if err != nil {
		t.Fatalf("DecodeTaskEvent returned error: %v", err)
	}
	if event.Type != sampleEvent().Type {
		t.Fatalf("unexpected event type %q", event.Type)
	}
}

package audit

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	id "punchgate/pkg/domain"
	"punchgate/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestPublisherWorkerRoundtrip(t *testing.T) {
	store := NewMemoryStore()
	publisher := NewPublisher(8, testLogger())
	worker := NewWorker(store, publisher.Inbox(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	publisher.Emit(ctx, Event{Action: ActionTenantSwitched, UserID: "u-1", TenantID: "t-1"})
	publisher.Emit(ctx, Event{Action: ActionEditRejectedLocked, UserID: "u-1", Subject: "tc-1"})

	deadline := time.After(time.Second)
	for {
		events, err := store.ListByUser(context.Background(), "u-1")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(events) == 2 {
			if events[0].Timestamp.IsZero() {
				t.Fatal("emit should stamp the event time")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not drain inbox, have %d events", len(events))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestEmitStampsRequestMetadata(t *testing.T) {
	publisher := NewPublisher(1, testLogger())
	sessionID := id.SessionID(uuid.New())

	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithSessionID(ctx, sessionID)
	ctx = requestcontext.WithClientMetadata(ctx, "198.51.100.7", "Firefox 128.0 (Linux)")

	publisher.Emit(ctx, Event{Action: ActionTenantSwitched, UserID: "u-1"})

	event := <-publisher.Inbox()
	if event.RequestID != "req-42" {
		t.Fatalf("request id = %q", event.RequestID)
	}
	if event.SessionID != sessionID.String() {
		t.Fatalf("session id = %q", event.SessionID)
	}
	if event.ClientIP != "198.51.100.7" {
		t.Fatalf("client ip = %q", event.ClientIP)
	}
	if event.UserAgent != "Firefox 128.0 (Linux)" {
		t.Fatalf("user agent = %q", event.UserAgent)
	}
}

func TestEmitDropsWhenInboxFull(t *testing.T) {
	publisher := NewPublisher(1, testLogger())

	// No worker draining: the second emit must drop rather than block.
	publisher.Emit(context.Background(), Event{Action: ActionBatchAnomaly})
	finished := make(chan struct{})
	go func() {
		publisher.Emit(context.Background(), Event{Action: ActionBatchAnomaly})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full inbox")
	}
}

package audit

import (
	"context"
	"log/slog"
	"time"

	"punchgate/pkg/requestcontext"
)

// Publisher hands audit events to a background worker over a bounded inbox.
// Emit never blocks domain logic: when the inbox is full the event is dropped
// and counted in the log instead.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Emit queues an event. Request-scoped metadata set by the middleware chain
// (request ID, session, client IP, user agent) is stamped here so emitters
// only fill domain fields.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.SessionID == "" {
		if sessionID := requestcontext.SessionID(ctx); !sessionID.IsZero() {
			event.SessionID = sessionID.String()
		}
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", event.Action,
			"subject", event.Subject,
		)
	}
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

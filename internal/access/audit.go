package access

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"embed-delivery/internal/platform/metrics"

	"github.com/google/uuid"
)

// Event is one gate decision as written to the audit log.
type Event struct {
	ID         string
	Domain     string
	RecordID   string
	Allowed    bool
	Reason     string
	ResourceID string
	At         time.Time
}

// NewEvent builds an audit event for d.
func NewEvent(d Decision, resourceID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Domain:     d.Domain,
		RecordID:   d.RecordID,
		Allowed:    d.Allowed,
		Reason:     d.Reason,
		ResourceID: resourceID,
		At:         time.Now().UTC(),
	}
}

// Auditor receives gate decisions. Record must not block the request path.
type Auditor interface {
	Record(e Event)
}

// AuditSink persists audit events.
type AuditSink interface {
	WriteEvent(ctx context.Context, e Event) error
}

const auditWriteTimeout = 5 * time.Second

// AsyncAuditor buffers events and writes them to a sink from a background goroutine.
// When the buffer is full the event is dropped and counted.
type AsyncAuditor struct {
	sink    AuditSink
	log     *slog.Logger
	metrics *metrics.Metrics
	events  chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncAuditor starts the writer goroutine. Call Close to drain and stop it.
func NewAsyncAuditor(sink AuditSink, buffer int, log *slog.Logger, m *metrics.Metrics) *AsyncAuditor {
	if buffer <= 0 {
		buffer = 1024
	}
	a := &AsyncAuditor{
		sink:    sink,
		log:     log,
		metrics: m,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Record implements Auditor.
func (a *AsyncAuditor) Record(e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.events <- e:
	default:
		a.metrics.IncAuditDropped()
	}
}

// Close stops accepting events, writes what is buffered, and returns when done.
func (a *AsyncAuditor) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

func (a *AsyncAuditor) run() {
	defer close(a.done)
	for e := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		if err := a.sink.WriteEvent(ctx, e); err != nil {
			a.log.Warn("write access audit event failed",
				slog.String("domain", e.Domain),
				slog.String("error", err.Error()))
		}
		cancel()
	}
}

// LogAuditor writes events to a structured logger only.
type LogAuditor struct {
	Log *slog.Logger
}

// Record implements Auditor.
func (l LogAuditor) Record(e Event) {
	l.Log.Info("access decision",
		slog.String("domain", e.Domain),
		slog.String("record_id", e.RecordID),
		slog.Bool("allowed", e.Allowed),
		slog.String("reason", e.Reason),
		slog.String("resource_id", e.ResourceID))
}

package access

import (
	"bytes"
	"context"
	"testing"
	"time"

	"embed-delivery/internal/platform/logger"
	"embed-delivery/internal/platform/metrics"

	"github.com/stretchr/testify/assert"
)

type blockingSink struct {
	entered chan struct{}
	release chan struct{}
	written int
}

func (s *blockingSink) WriteEvent(context.Context, Event) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	s.written++
	return nil
}

func TestAsyncAuditor_RecordNeverBlocks(t *testing.T) {
	sink := &blockingSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	aud := NewAsyncAuditor(sink, 1, logger.Discard(), metrics.New())

	aud.Record(Event{Domain: "a.com"})
	<-sink.entered // writer is now stuck on the first event

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			aud.Record(Event{Domain: "b.com"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}

	close(sink.release)
	aud.Close()
	// First event, plus at most the one buffered slot.
	assert.LessOrEqual(t, sink.written, 2)
	assert.GreaterOrEqual(t, sink.written, 1)
}

func TestLogAuditor_Record(t *testing.T) {
	var buf bytes.Buffer
	gate := NewGate(NewMemoryPolicyStore(), LogAuditor{Log: logger.NewWithWriter(&buf, "info", "text")}, logger.Discard(), nil, 0)

	gate.CheckResource(context.Background(), "res-1", "https://www.example.com/page", "")

	out := buf.String()
	assert.Contains(t, out, "access decision")
	assert.Contains(t, out, "domain=example.com")
	assert.Contains(t, out, "allowed=true")
	assert.Contains(t, out, "reason=no_policy")
	assert.Contains(t, out, "resource_id=res-1")
}

package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/star/orbitscreen/internal/metrics"
)

// writeDeadline bounds a single event write on a long-lived stream.
const writeDeadline = 30 * time.Second

// eventWriter frames messages for one SSE connection. Each data event carries a
// per-connection sequence number as its id so a client can tell whether it
// missed anything across a reconnect.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger

	seq   uint64
	bytes int64
}

// event sends v as a named SSE event:
//
//	event: close_approach
//	id: 3
//	data: {...}
func (e *eventWriter) event(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", name, err)
	}
	e.seq++

	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\nid: %d\ndata: %s\n\n", name, e.seq, data)
	return e.write(b.String(), true)
}

// retry tells the client how long to wait before reconnecting.
func (e *eventWriter) retry(d time.Duration) error {
	return e.write(fmt.Sprintf("retry: %d\n\n", d.Milliseconds()), false)
}

// keepalive sends an SSE comment.
func (e *eventWriter) keepalive() error {
	return e.write(":\n\n", false)
}

func (e *eventWriter) write(frame string, data bool) error {
	if err := e.rc.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		e.logger.Debug("could not set write deadline", "error", err)
	}

	n, err := fmt.Fprint(e.w, frame)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	e.flusher.Flush()

	e.bytes += int64(n)
	metrics.RecordStreamMessage(n, data)
	return nil
}

// Package sse implements the server-sent-events framing the streaming
// transport uses to forward workflow events to the client.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer frames JSON payloads as text/event-stream data lines and flushes
// after every write so the client receives tokens as they arrive.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the four required SSE headers and returns a Writer. It
// returns an error if the underlying ResponseWriter cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream; charset=utf-8")
	header.Set("Cache-Control", "no-cache, no-store")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent marshals payload to JSON and writes it as one `data: <json>\n\n`
// frame, flushing immediately.
func (w *Writer) WriteEvent(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// Close flushes any buffered output. It writes nothing itself; the response
// ends when the handler returns.
func (w *Writer) Close() {
	w.flusher.Flush()
}

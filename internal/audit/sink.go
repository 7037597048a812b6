package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Sink is an audit event writer that can be shut down cleanly, flushing
// anything still buffered.
type Sink interface {
	EventWriter
	Close() error
}

// securitySignificant reports whether an event is the kind that should
// never wait out a batching window: a failed decode or quick-validate is the
// signal an operator watching for brute-force password guessing cares
// about, and delaying it behind BatchSink's flush interval defeats that.
func securitySignificant(event *Event) bool {
	return !event.Success && (event.EventType == EventTypeDecode || event.EventType == EventTypeQuickValidate)
}

// BatchSink wraps an EventWriter and coalesces successful, routine events
// into periodic batches, while letting security-significant events (failed
// decode/validate attempts) through immediately.
type BatchSink struct {
	wrapped       EventWriter
	buffer        []*Event
	bufferSize    int
	flushInterval time.Duration
	mu            sync.Mutex
	closeChan     chan struct{}
	wg            sync.WaitGroup
	retryCount    int
	retryBackoff  time.Duration
}

// NewBatchSink wraps wrapped in a BatchSink that flushes every interval or
// once size events have accumulated, retrying a failed flush retryCount
// times with exponential backoff starting at retryBackoff.
func NewBatchSink(wrapped EventWriter, size int, interval time.Duration, retryCount int, retryBackoff time.Duration) *BatchSink {
	if size <= 0 {
		size = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	s := &BatchSink{
		wrapped:       wrapped,
		buffer:        make([]*Event, 0, size),
		bufferSize:    size,
		flushInterval: interval,
		closeChan:     make(chan struct{}),
		retryCount:    retryCount,
		retryBackoff:  retryBackoff,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// WriteEvent buffers event for the next periodic flush, unless it is
// security-significant or fills the buffer, in which case it is flushed
// immediately.
func (s *BatchSink) WriteEvent(event *Event) error {
	if securitySignificant(event) {
		return s.writeWithRetry([]*Event{event})
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	full := len(s.buffer) >= s.bufferSize
	var events []*Event
	if full {
		events = s.drainBufferLocked()
	}
	s.mu.Unlock()

	if full {
		go s.writeWithRetry(events)
	}
	return nil
}

// Close stops the flush loop and flushes any remaining buffered events.
func (s *BatchSink) Close() error {
	close(s.closeChan)
	s.wg.Wait()
	return nil
}

func (s *BatchSink) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	flush := func() {
		s.mu.Lock()
		events := s.drainBufferLocked()
		s.mu.Unlock()
		if len(events) > 0 {
			s.writeWithRetry(events)
		}
	}

	for {
		select {
		case <-ticker.C:
			flush()
		case <-s.closeChan:
			flush()
			return
		}
	}
}

// drainBufferLocked returns the current buffer contents and clears it.
// Caller must hold s.mu.
func (s *BatchSink) drainBufferLocked() []*Event {
	if len(s.buffer) == 0 {
		return nil
	}

	events := make([]*Event, len(s.buffer))
	copy(events, s.buffer)
	s.buffer = s.buffer[:0]
	return events
}

func (s *BatchSink) writeWithRetry(events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	var err error
	for i := 0; i <= s.retryCount; i++ {
		err = nil
		if bw, ok := s.wrapped.(BatchWriter); ok {
			err = bw.WriteBatch(events)
		} else {
			for _, event := range events {
				if e := s.wrapped.WriteEvent(event); e != nil {
					err = e
				}
			}
		}

		if err == nil {
			return nil
		}
		if i < s.retryCount {
			time.Sleep(s.retryBackoff * time.Duration(1<<uint(i)))
		}
	}

	fmt.Fprintf(os.Stderr, "audit: failed to flush %d event(s) after %d retries: %v\n", len(events), s.retryCount, err)
	return err
}

// BatchWriter is implemented by sinks that can write a batch of events in
// one call instead of one WriteEvent call per event.
type BatchWriter interface {
	WriteBatch(events []*Event) error
}

// HTTPSink POSTs events as JSON to a fixed endpoint, tagging the request
// with the operation the batch is dominated by so a receiving collector
// can route encode/decode/restore events without parsing the body first.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// NewHTTPSink constructs an HTTPSink posting to endpoint with extra
// headers merged into every request (e.g. an auth token).
func NewHTTPSink(endpoint string, headers map[string]string) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		headers:  headers,
	}
}

// WriteEvent sends a single event as a one-element batch.
func (s *HTTPSink) WriteEvent(event *Event) error {
	return s.WriteBatch([]*Event{event})
}

// WriteBatch POSTs events as a JSON array.
func (s *HTTPSink) WriteBatch(events []*Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", s.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rbuvault-Event-Type", string(dominantEventType(events)))
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("audit: http sink returned status %s", resp.Status)
	}
	return nil
}

// dominantEventType returns the EventType shared by events if they all
// agree, or "mixed" for a batch spanning more than one operation kind.
func dominantEventType(events []*Event) EventType {
	if len(events) == 0 {
		return ""
	}
	first := events[0].EventType
	for _, e := range events[1:] {
		if e.EventType != first {
			return "mixed"
		}
	}
	return first
}

// FileSink appends events to a local NDJSON file, one JSON object per
// line, guarded by a mutex since Log may be called from concurrent
// encode/decode/restore operations sharing one logger.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink constructs a FileSink appending to path, creating it if
// necessary.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// WriteEvent appends one NDJSON line for event.
func (s *FileSink) WriteEvent(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

// StdoutSink writes events to stdout as one JSON object per line, the
// default sink when audit logging is enabled but no backend is configured.
type StdoutSink struct{}

// WriteEvent prints one JSON-encoded event.
func (s *StdoutSink) WriteEvent(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

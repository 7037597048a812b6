// Package audit records a trail of encode/decode/restore operations
// against the backup container, with pluggable sinks and redaction of
// sensitive metadata keys.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/kenneth/rbuvault/internal/config"
	"github.com/kenneth/rbuvault/internal/containererr"
)

// EventType identifies which container operation an event describes.
type EventType string

const (
	EventTypeEncode        EventType = "encode"
	EventTypeDecode        EventType = "decode"
	EventTypeQuickValidate EventType = "quick_validate"
	EventTypeRestore       EventType = "restore"
)

// Event represents a single audit log entry for one container operation.
type Event struct {
	Timestamp     time.Time              `json:"timestamp"`
	EventType     EventType              `json:"event_type"`
	Operation     string                 `json:"operation"`
	ContainerPath string                 `json:"container_path,omitempty"`
	InstanceName  string                 `json:"instance_name,omitempty"`
	FormatVersion int                    `json:"format_version,omitempty"`
	ChunkCount    int                    `json:"chunk_count,omitempty"`
	Success       bool                   `json:"success"`
	ErrorKind     string                 `json:"error_kind,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Duration      time.Duration          `json:"duration_ms"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Logger is the interface for audit logging.
type Logger interface {
	Log(event *Event) error

	LogEncode(containerPath string, formatVersion, chunkCount int, success bool, err error, duration time.Duration, metadata map[string]interface{})
	LogDecode(containerPath string, formatVersion, chunkCount int, success bool, err error, duration time.Duration, metadata map[string]interface{})
	LogRestore(instanceName string, success bool, err error, duration time.Duration, metadata map[string]interface{})

	// GetEvents returns all buffered audit events (for testing/querying).
	GetEvents() []*Event

	// Close closes the logger and its underlying writer.
	Close() error
}

// auditLogger implements Logger.
type auditLogger struct {
	mu         sync.Mutex
	events     []*Event
	maxEvents  int
	writer     EventWriter
	redactKeys []string
}

// EventWriter is an interface for writing audit events to a sink.
type EventWriter interface {
	WriteEvent(event *Event) error
}

// NewLogger creates a new audit logger with no metadata redaction.
func NewLogger(maxEvents int, writer EventWriter) Logger {
	return NewLoggerWithRedaction(maxEvents, writer, nil)
}

// NewLoggerWithRedaction creates a new audit logger that masks the given
// metadata keys (e.g. a path containing a user email) before they reach
// the sink.
func NewLoggerWithRedaction(maxEvents int, writer EventWriter, redactKeys []string) Logger {
	if writer == nil {
		writer = &StdoutSink{}
	}

	return &auditLogger{
		events:     make([]*Event, 0, maxEvents),
		maxEvents:  maxEvents,
		writer:     writer,
		redactKeys: redactKeys,
	}
}

// Log records one audit event, writing it to the configured sink and
// retaining it in the bounded in-memory buffer.
func (l *auditLogger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer != nil {
		_ = l.writer.WriteEvent(event)
	}

	l.events = append(l.events, event)
	if l.maxEvents > 0 && len(l.events) > l.maxEvents {
		l.events = l.events[len(l.events)-l.maxEvents:]
	}

	return nil
}

// Close closes the underlying writer, if it supports closing.
func (l *auditLogger) Close() error {
	if closer, ok := l.writer.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

func (l *auditLogger) redactMetadata(metadata map[string]interface{}) map[string]interface{} {
	if len(l.redactKeys) == 0 || len(metadata) == 0 {
		return metadata
	}

	needsRedaction := false
	for _, k := range l.redactKeys {
		if _, ok := metadata[k]; ok {
			needsRedaction = true
			break
		}
	}
	if !needsRedaction {
		return metadata
	}

	clone := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}
	for _, key := range l.redactKeys {
		if _, ok := clone[key]; ok {
			clone[key] = "[REDACTED]"
		}
	}
	return clone
}

// LogEncode records one encode operation.
func (l *auditLogger) LogEncode(containerPath string, formatVersion, chunkCount int, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	event := &Event{
		Timestamp:     time.Now(),
		EventType:     EventTypeEncode,
		Operation:     "encode",
		ContainerPath: containerPath,
		FormatVersion: formatVersion,
		ChunkCount:    chunkCount,
		Success:       success,
		Duration:      duration,
		Metadata:      l.redactMetadata(metadata),
	}
	l.attachError(event, err)
	l.Log(event)
}

// LogDecode records one decode operation.
func (l *auditLogger) LogDecode(containerPath string, formatVersion, chunkCount int, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	event := &Event{
		Timestamp:     time.Now(),
		EventType:     EventTypeDecode,
		Operation:     "decode",
		ContainerPath: containerPath,
		FormatVersion: formatVersion,
		ChunkCount:    chunkCount,
		Success:       success,
		Duration:      duration,
		Metadata:      l.redactMetadata(metadata),
	}
	l.attachError(event, err)
	l.Log(event)
}

// LogRestore records one restore operation against a target instance.
func (l *auditLogger) LogRestore(instanceName string, success bool, err error, duration time.Duration, metadata map[string]interface{}) {
	event := &Event{
		Timestamp:    time.Now(),
		EventType:    EventTypeRestore,
		Operation:    "restore",
		InstanceName: instanceName,
		Success:      success,
		Duration:     duration,
		Metadata:     l.redactMetadata(metadata),
	}
	l.attachError(event, err)
	l.Log(event)
}

func (l *auditLogger) attachError(event *Event, err error) {
	if err == nil {
		return
	}
	event.Error = err.Error()
	if kind, ok := containererr.KindOf(err); ok {
		event.ErrorKind = string(kind)
	}
}

// NewLoggerFromConfig builds a Logger from an AuditConfig: it selects and
// constructs the configured sink (stdout, file, http, optionally batched),
// and wires up metadata redaction. A disabled config still returns a
// working no-op-sink logger so callers don't need a nil check.
func NewLoggerFromConfig(cfg config.AuditConfig) (Logger, error) {
	if !cfg.Enabled {
		return NewLoggerWithRedaction(cfg.MaxEvents, &discardSink{}, cfg.RedactKeys), nil
	}

	var base EventWriter
	switch cfg.Sink.Type {
	case "", "stdout":
		base = &StdoutSink{}
	case "file":
		if cfg.Sink.Path == "" {
			return nil, fmt.Errorf("audit: file sink requires a path")
		}
		base = NewFileSink(cfg.Sink.Path)
	case "http":
		if cfg.Sink.Endpoint == "" {
			return nil, fmt.Errorf("audit: http sink requires an endpoint")
		}
		base = NewHTTPSink(cfg.Sink.Endpoint, nil)
	default:
		return nil, fmt.Errorf("audit: unknown sink type %q", cfg.Sink.Type)
	}

	if cfg.Sink.BatchSize > 0 {
		interval := time.Duration(cfg.Sink.FlushIntervalSeconds) * time.Second
		base = NewBatchSink(base, cfg.Sink.BatchSize, interval, 3, 100*time.Millisecond)
	}

	return NewLoggerWithRedaction(cfg.MaxEvents, base, cfg.RedactKeys), nil
}

// discardSink drops every event; used when audit logging is disabled.
type discardSink struct{}

func (discardSink) WriteEvent(*Event) error { return nil }

// GetEvents returns a copy of the buffered audit events.
func (l *auditLogger) GetEvents() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*Event, len(l.events))
	copy(events, l.events)
	return events
}

package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds.
const (
	KindRequest    = "http_request"
	KindTransition = "session_transition"
)

// Event is one log record. Request events fill the HTTP fields; transition
// events fill From, To and Reason.
type Event struct {
	Timestamp time.Time     `json:"timestamp"`
	Kind      string        `json:"kind"`
	RequestID string        `json:"request_id,omitempty"`
	Method    string        `json:"method,omitempty"`
	Path      string        `json:"path,omitempty"`
	Status    int           `json:"status,omitempty"`
	Outcome   string        `json:"outcome,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Replayed  bool          `json:"replayed,omitempty"`

	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`
	UserID string `json:"user_id,omitempty"`

	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZerologSink writes events through a zerolog logger. Request events are logged
// at debug level as "outbound http-request"; transitions at info level.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger}
}

// NewConsoleSink returns a ZerologSink writing human-readable lines to w.
func NewConsoleSink(w io.Writer) *ZerologSink {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Str("component", "gigauth").Logger()
	return &ZerologSink{logger: logger}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}

	var evt *zerolog.Event
	switch event.Kind {
	case KindTransition:
		evt = s.logger.Info().
			Str("from", event.From).
			Str("to", event.To).
			Str("reason", event.Reason)
		if event.UserID != "" {
			evt = evt.Str("user_id", event.UserID)
		}
	default:
		evt = s.logger.Debug().
			Str("method", event.Method).
			Str("path", event.Path).
			Str("outcome", event.Outcome).
			Dur("duration", event.Duration)
		if event.Status != 0 {
			evt = evt.Int("response-code", event.Status)
		}
		if event.Replayed {
			evt = evt.Bool("replayed", true)
		}
	}
	if event.RequestID != "" {
		evt = evt.Str("request_id", event.RequestID)
	}
	if event.Error != "" {
		evt = evt.Str("error", event.Error)
	}
	for k, v := range event.Metadata {
		evt = evt.Str(k, v)
	}

	switch event.Kind {
	case KindTransition:
		evt.Msg("session transition")
	default:
		evt.Msg("outbound http-request")
	}
}

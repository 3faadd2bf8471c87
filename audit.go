package gigauth

import (
	"io"

	"github.com/MrEthical07/gigauth/internal/audit"
	"github.com/rs/zerolog"
)

// LogEvent is one structured traffic or transition record.
type LogEvent = audit.Event

// LogSink receives log records from the async dispatcher. Emit runs on the
// dispatcher goroutine, never on the request path.
type LogSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZerologSink    = audit.ZerologSink
)

// Log record kinds.
const (
	LogKindRequest    = audit.KindRequest
	LogKindTransition = audit.KindTransition
)

// NewChannelSink returns a sink that forwards records into a buffered channel.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZerologSink returns a sink that logs through logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return audit.NewZerologSink(logger)
}

// NewConsoleSink returns a zerolog sink writing human-readable lines to w.
// It is the sink used when debug logging is on and none was configured.
func NewConsoleSink(w io.Writer) *ZerologSink {
	return audit.NewConsoleSink(w)
}

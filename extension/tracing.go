package extension

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MIMETraceID is the MIME type of a trace id entry in composite metadata.
const MIMETraceID = "message/x.rsocket.trace-id.v0"

// UnknownTraceID is used when a request carries no trace id.
const UnknownTraceID = "unknown"

// NewTraceID generates a new trace id.
func NewTraceID() string {
	return uuid.New().String()
}

// EncodeTraceID encodes trace id to bytes.
func EncodeTraceID(traceID string) []byte {
	return []byte(traceID)
}

// ParseTraceID parses a trace id entry.
func ParseTraceID(raw []byte) (string, error) {
	if len(raw) < 1 {
		return "", errors.New("empty trace id")
	}
	return string(raw), nil
}

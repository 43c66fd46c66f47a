package socket

// SessionState is the state of a session.
type SessionState int32

// Session states.
const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionResuming
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "CONNECTING"
	case SessionActive:
		return "ACTIVE"
	case SessionResuming:
		return "RESUMING"
	case SessionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Model is the interaction model of a stream.
type Model int8

// Interaction models.
const (
	ModelFireAndForget Model = iota
	ModelRequestResponse
	ModelRequestStream
	ModelRequestChannel
)

func (m Model) String() string {
	switch m {
	case ModelFireAndForget:
		return "FNF"
	case ModelRequestResponse:
		return "RESPONSE"
	case ModelRequestStream:
		return "STREAM"
	case ModelRequestChannel:
		return "CHANNEL"
	default:
		return "UNKNOWN"
	}
}

// StreamState is the state of one stream.
type StreamState int8

// Stream states. The last three are terminal.
const (
	StreamIdle StreamState = iota
	StreamRequested
	StreamResponsePending
	StreamStreaming
	StreamChannelOpen
	StreamComplete
	StreamError
	StreamCancelled
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "IDLE"
	case StreamRequested:
		return "REQUESTED"
	case StreamResponsePending:
		return "ONE_RESPONSE_PENDING"
	case StreamStreaming:
		return "STREAMING"
	case StreamChannelOpen:
		return "CHANNEL_OPEN"
	case StreamComplete:
		return "COMPLETE"
	case StreamError:
		return "ERROR"
	case StreamCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal returns true if no frame may follow.
func (s StreamState) Terminal() bool {
	return s >= StreamComplete
}

// openState is the state a stream enters once its request frame is out.
func (m Model) openState() StreamState {
	switch m {
	case ModelRequestResponse:
		return StreamResponsePending
	case ModelRequestStream:
		return StreamStreaming
	case ModelRequestChannel:
		return StreamChannelOpen
	default:
		return StreamComplete
	}
}

package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors.
var (
	ErrInvalidFrame       = errors.New("invalid frame")
	ErrInvalidFrameLength = errors.New("invalid frame length")
	ErrSocketClosed       = errors.New("socket closed")
)

// DecodeError is returned when bytes can not be decoded as a frame.
// A DecodeError is fatal to the session which received it.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode frame failed: " + e.Reason
}

// NewDecodeError creates a new DecodeError.
func NewDecodeError(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// ProtocolViolation means the peer broke the interaction rules of one stream.
// It terminates the stream but not the session.
type ProtocolViolation struct {
	StreamID uint32
	Reason   string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation on stream %d: %s", e.StreamID, e.Reason)
}

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	cause error
}

func (e *TransportError) Error() string {
	return "transport failed: " + e.cause.Error()
}

// Unwrap returns the cause.
func (e *TransportError) Unwrap() error {
	return e.cause
}

// NewTransportError wraps err as a TransportError.
func NewTransportError(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{cause: err}
}

// Error is an error which can be carried by an ERROR frame.
type Error struct {
	code  ErrorCode
	data  []byte
	cause error
}

// NewError creates a new Error with code and message.
func NewError(code ErrorCode, data []byte) *Error {
	return &Error{code: code, data: data}
}

// NewApplicationError creates a new APPLICATION_ERROR.
func NewApplicationError(msg string) *Error {
	return NewError(ErrorCodeApplicationError, []byte(msg))
}

// NewSessionError wraps a session failure as an APPLICATION_ERROR which terminates every stream.
func NewSessionError(cause error) *Error {
	var e *Error
	if errors.As(cause, &e) && e.code == ErrorCodeApplicationError {
		return e
	}
	return &Error{
		code:  ErrorCodeApplicationError,
		data:  []byte(cause.Error()),
		cause: cause,
	}
}

// ToError converts any error to an Error, APPLICATION_ERROR is used by default.
func ToError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		code:  ErrorCodeApplicationError,
		data:  []byte(err.Error()),
		cause: err,
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.data)
}

// ErrorCode returns code of error.
func (e *Error) ErrorCode() ErrorCode {
	return e.code
}

// ErrorData returns data of error.
func (e *Error) ErrorData() []byte {
	return e.data
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// IsErrorCode returns true if err is an Error with given code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsResumeRejected returns true if err means resume was rejected.
func IsResumeRejected(err error) bool {
	return IsErrorCode(err, ErrorCodeRejectedResume)
}

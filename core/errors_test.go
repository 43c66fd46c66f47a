package core_test

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	all := []core.ErrorCode{
		core.ErrorCodeInvalidSetup,
		core.ErrorCodeUnsupportedSetup,
		core.ErrorCodeRejectedSetup,
		core.ErrorCodeRejectedResume,
		core.ErrorCodeConnectionError,
		core.ErrorCodeConnectionClose,
		core.ErrorCodeApplicationError,
		core.ErrorCodeRejected,
		core.ErrorCodeCanceled,
		core.ErrorCodeInvalid,
	}
	for _, code := range all {
		assert.NotEqual(t, "UNKNOWN", code.String())
	}
	assert.Equal(t, "UNKNOWN", core.ErrorCode(math.MaxUint32).String())
	assert.True(t, core.ErrorCodeRejectedResume.ConnectionLevel())
	assert.False(t, core.ErrorCodeCanceled.ConnectionLevel())
}

func TestSessionError(t *testing.T) {
	rejected := core.NewError(core.ErrorCodeRejectedSetup, []byte("bad client"))
	err := core.NewSessionError(rejected)
	assert.Equal(t, core.ErrorCodeApplicationError, err.ErrorCode())
	assert.True(t, core.IsErrorCode(err, core.ErrorCodeRejectedSetup))
	assert.Equal(t, rejected, errors.Unwrap(err))

	app := core.NewApplicationError("boom")
	assert.Equal(t, app, core.NewSessionError(app))
}

func TestToError(t *testing.T) {
	e := core.ToError(errors.New("fake"))
	assert.Equal(t, core.ErrorCodeApplicationError, e.ErrorCode())
	assert.Equal(t, "fake", string(e.ErrorData()))
	origin := core.NewError(core.ErrorCodeInvalid, []byte("x"))
	assert.Equal(t, origin, core.ToError(errors.Wrap(origin, "wrapped")))
}

func TestTransportError(t *testing.T) {
	cause := errors.New("broken pipe")
	err := core.NewTransportError(cause)
	var te *core.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, err, core.NewTransportError(err))
	assert.NoError(t, core.NewTransportError(nil))
}

func TestDecodeError(t *testing.T) {
	err := core.NewDecodeError("bad length %d", 3)
	assert.Contains(t, err.Error(), "bad length 3")
	v := &core.ProtocolViolation{StreamID: 3, Reason: "second payload"}
	assert.Contains(t, v.Error(), "stream 3")
}

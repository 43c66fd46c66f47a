package socket

import (
	"testing"

	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerFrames() []*framing.Frame {
	return []*framing.Frame{
		framing.NewRequestResponseFrame(1, []byte("one"), nil, 0),
		framing.NewPayloadFrame(1, []byte("two"), []byte("meta"), core.FlagNext),
		framing.NewCancelFrame(3),
	}
}

func TestLedger_Replay(t *testing.T) {
	frames := newLedgerFrames()
	l := newLedger(LedgerOptions{})
	var end uint64
	for _, f := range frames {
		l.append(f)
		end += uint64(f.Len())
	}
	assert.Equal(t, end, l.position())
	assert.Equal(t, uint64(0), l.firstAvailable())

	first := uint64(frames[0].Len())
	_, err := l.replay(first + 1)
	assert.Error(t, err, "should fail when position is not a frame boundary")
	_, err = l.replay(end + 1)
	assert.Error(t, err, "should fail when position is ahead")

	replayed, err := l.replay(first)
	require.NoError(t, err)
	assert.Equal(t, frames[1:], replayed)
	assert.Equal(t, first, l.firstAvailable())

	_, err = l.replay(0)
	assert.Error(t, err, "acknowledged frames should be gone")

	replayed, err = l.replay(end)
	require.NoError(t, err)
	assert.Empty(t, replayed)
	assert.Equal(t, 0, l.len())
	assert.Equal(t, end, l.firstAvailable())
}

func TestLedger_Trim(t *testing.T) {
	frames := newLedgerFrames()
	l := newLedger(LedgerOptions{})
	for _, f := range frames {
		l.append(f)
	}
	// a position inside a frame keeps the frame
	l.trim(uint64(frames[0].Len()) + 1)
	assert.Equal(t, 2, l.len())
	l.trim(l.position())
	assert.Equal(t, 0, l.len())
	assert.Equal(t, l.position(), l.firstAvailable())
}

func TestLedger_Bounded(t *testing.T) {
	frames := newLedgerFrames()

	l := newLedger(LedgerOptions{MaxFrames: 2})
	for _, f := range frames {
		l.append(f)
	}
	assert.Equal(t, 2, l.len())
	assert.Equal(t, uint64(frames[0].Len()), l.firstAvailable())

	l = newLedger(LedgerOptions{MaxBytes: 1})
	for _, f := range frames {
		l.append(f)
	}
	assert.Equal(t, 1, l.len(), "the last frame is always kept")
	assert.Equal(t, l.position()-uint64(frames[2].Len()), l.firstAvailable())
}

package fragmentation

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/common"
)

// Joiner is used to join fragments into one frame.
type Joiner struct {
	first       *framing.Frame
	complete    bool
	hasMetadata bool
	metadata    *common.ByteBuff
	data        *common.ByteBuff
}

// NewJoiner creates a joiner from the first fragment.
func NewJoiner(first *framing.Frame) *Joiner {
	j := &Joiner{
		first:    first,
		metadata: common.BorrowByteBuff(),
		data:     common.BorrowByteBuff(),
	}
	j.append(first)
	return j
}

// StreamID returns stream id of fragments.
func (j *Joiner) StreamID() uint32 {
	return j.first.StreamID
}

// Type returns frame type of first fragment.
func (j *Joiner) Type() core.FrameType {
	return j.first.Type
}

// Push appends next fragment, returns true if it is the last one.
func (j *Joiner) Push(next *framing.Frame) (done bool, err error) {
	if j.metadata == nil {
		err = errors.New("joiner has been released")
		return
	}
	if next.Type != core.FrameTypePayload || next.StreamID != j.first.StreamID {
		err = errors.Errorf("invalid fragment: %s", next)
		return
	}
	j.append(next)
	done = !next.Flags.Check(core.FlagFollow)
	if done {
		j.complete = next.Flags.Check(core.FlagComplete)
	}
	return
}

func (j *Joiner) append(f *framing.Frame) {
	if f.Metadata != nil {
		j.hasMetadata = true
		_, _ = j.metadata.Write(f.Metadata)
	}
	_, _ = j.data.Write(f.Data)
}

// Frame returns the reassembled frame, bytes are copied out of the pooled buffers.
func (j *Joiner) Frame() *framing.Frame {
	joined := *j.first
	joined.Flags &^= core.FlagFollow
	if j.complete {
		joined.Flags |= core.FlagComplete
	}
	joined.Metadata = nil
	if j.hasMetadata {
		joined.Metadata = common.CloneBytes(j.metadata.Bytes())
		if joined.Metadata == nil {
			joined.Metadata = []byte{}
		}
	}
	joined.Data = nil
	if j.data.Len() > 0 {
		joined.Data = common.CloneBytes(j.data.Bytes())
	}
	return &joined
}

// Release returns pooled buffers.
func (j *Joiner) Release() {
	common.ReturnByteBuff(j.metadata)
	common.ReturnByteBuff(j.data)
	j.metadata, j.data = nil, nil
}

func (j *Joiner) String() string {
	return fmt.Sprintf("Joiner{id=%d,type=%s}", j.first.StreamID, j.first.Type)
}

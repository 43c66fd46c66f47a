package fragmentation

import (
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/u24"
)

const (
	// MinFragment is minimum fragment size in bytes.
	MinFragment = 64
	// MaxFragment is maximum fragment size in bytes.
	MaxFragment = u24.MaxUint24
)

var errInvalidFragmentLen = errors.Errorf("invalid fragment: [%d,%d]", MinFragment, MaxFragment)

// IsValidFragment returns true if mtu can be used for fragmentation. Zero disables fragmentation.
func IsValidFragment(mtu int) bool {
	return mtu == 0 || (mtu >= MinFragment && mtu <= MaxFragment)
}

// CheckFragment returns an error if mtu is invalid.
func CheckFragment(mtu int) error {
	if !IsValidFragment(mtu) {
		return errInvalidFragmentLen
	}
	return nil
}

// HandleSplitResult is callback for fragmentation result.
type HandleSplitResult = func(index int, result SplitResult)

// SplitResult defines fragmentation result struct.
type SplitResult struct {
	Flag     core.FrameFlag
	Metadata []byte
	Data     []byte
}

// Split splits data and metadata into fragments which fit into mtu.
// Metadata is filled first, skip bytes are reserved in the first fragment.
func Split(mtu int, skip int, data []byte, metadata []byte, onFrame HandleSplitResult) {
	mlen, dlen := len(metadata), len(data)
	var idx, cursor1, cursor2 int
	for {
		left := mtu - core.FrameHeaderLen
		if idx == 0 {
			left -= skip
		}
		hasMetadata := cursor1 < mlen || (idx == 0 && metadata != nil)
		if hasMetadata {
			left -= 3
		}
		begin1, begin2 := cursor1, cursor2
		if n := mlen - cursor1; n > 0 {
			if n > left {
				n = left
			}
			cursor1 += n
			left -= n
		}
		if n := dlen - cursor2; n > 0 && cursor1 == mlen {
			if n > left {
				n = left
			}
			cursor2 += n
		}
		var result SplitResult
		if hasMetadata {
			result.Flag |= core.FlagMetadata
			result.Metadata = metadata[begin1:cursor1]
		}
		if cursor2 > begin2 {
			result.Data = data[begin2:cursor2]
		}
		follow := cursor1+cursor2 < mlen+dlen
		if follow {
			result.Flag |= core.FlagFollow
		}
		onFrame(idx, result)
		if !follow {
			return
		}
		idx++
	}
}

// SplitFrame splits a request or payload frame into fragments.
// The first fragment keeps the frame type, the others are PAYLOAD frames.
// The complete flag is moved to the last fragment.
func SplitFrame(mtu int, f *framing.Frame) []*framing.Frame {
	if mtu <= 0 || f.Len() <= mtu {
		return []*framing.Frame{f}
	}
	var skip int
	switch f.Type {
	case core.FrameTypeRequestStream, core.FrameTypeRequestChannel:
		skip = 4
	case core.FrameTypeRequestResponse, core.FrameTypeRequestFNF, core.FrameTypePayload:
	default:
		return []*framing.Frame{f}
	}
	complete := f.Flags & core.FlagComplete
	var out []*framing.Frame
	Split(mtu, skip, f.Data, f.Metadata, func(idx int, result SplitResult) {
		var next *framing.Frame
		if idx == 0 {
			clone := *f
			clone.Flags = f.Flags &^ (core.FlagComplete | core.FlagFollow)
			next = &clone
		} else {
			next = &framing.Frame{
				StreamID: f.StreamID,
				Type:     core.FrameTypePayload,
			}
		}
		next.Metadata, next.Data = result.Metadata, result.Data
		if result.Flag.Check(core.FlagFollow) {
			next.Flags |= core.FlagFollow
		} else {
			next.Flags |= complete
			if idx > 0 {
				next.Flags |= core.FlagNext
			}
		}
		out = append(out, next)
	})
	return out
}

package framing

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rsocket/rsocket-engine/core"
)

// CalcPayloadFrameSize returns payload frame size.
func CalcPayloadFrameSize(data, metadata []byte) int {
	size := core.FrameHeaderLen + len(data)
	if metadata != nil {
		size += 3 + len(metadata)
	}
	return size
}

// PrintFrame prints frame in bytes dump.
func PrintFrame(f *Frame) string {
	b := &strings.Builder{}
	b.WriteString("\nFrame => Stream ID: ")
	b.WriteString(strconv.Itoa(int(f.StreamID)))
	b.WriteString(" Type: ")
	b.WriteString(f.Type.String())
	b.WriteString(" Flags: 0b")
	_, _ = fmt.Fprintf(b, "%010b", f.flags())
	b.WriteString(" Length: ")
	b.WriteString(strconv.Itoa(f.Len()))
	switch f.Type {
	case core.FrameTypeRequestStream, core.FrameTypeRequestChannel:
		b.WriteString(" InitialRequestN: ")
		b.WriteString(strconv.FormatUint(uint64(f.InitialRequestN), 10))
	case core.FrameTypeRequestN:
		b.WriteString(" RequestN: ")
		b.WriteString(strconv.FormatUint(uint64(f.N), 10))
	case core.FrameTypeError:
		b.WriteString(" Code: ")
		b.WriteString(f.ErrorCode.String())
	case core.FrameTypeKeepalive, core.FrameTypeResumeOK:
		b.WriteString(" Position: ")
		b.WriteString(strconv.FormatUint(f.LastReceivedPosition, 10))
	}
	if f.Metadata != nil {
		b.WriteString("\nMetadata:\n")
		b.WriteString(hex.Dump(f.Metadata))
	}
	if len(f.Data) > 0 {
		b.WriteString("\nData:\n")
		b.WriteString(hex.Dump(f.Data))
	}
	return b.String()
}

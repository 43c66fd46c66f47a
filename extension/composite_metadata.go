package extension

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/internal/u24"
)

const maxMIMELen = 0x7F

var (
	errInvalidCompositeMetadata = errors.New("invalid composite metadata")
	errMIMELengthExceed         = errors.Errorf("length of MIME type exceed %d", maxMIMELen)
)

// CompositeMetadata is one entry of composite metadata.
// See: https://github.com/rsocket/rsocket/blob/master/Extensions/CompositeMetadata.md
type CompositeMetadata struct {
	id        MIME
	wellKnown bool
	mime      string
	payload   []byte
}

// NewCompositeMetadata returns a new composite metadata entry.
// A well-known MIME string is encoded as its id.
func NewCompositeMetadata(mime string, payload []byte) *CompositeMetadata {
	if found, ok := mimeTypesR[mime]; ok {
		return NewWellKnownCompositeMetadata(found, payload)
	}
	return &CompositeMetadata{
		mime:    mime,
		payload: payload,
	}
}

// NewWellKnownCompositeMetadata returns a new composite metadata entry with a well-known id.
func NewWellKnownCompositeMetadata(id MIME, payload []byte) *CompositeMetadata {
	return &CompositeMetadata{
		id:        id & MaxMIME,
		wellKnown: true,
		payload:   payload,
	}
}

// MIME returns MIME type.
func (p *CompositeMetadata) MIME() string {
	if p.wellKnown {
		return p.id.String()
	}
	return p.mime
}

// WellKnown returns the well-known id, ok is false if the entry uses a MIME string.
func (p *CompositeMetadata) WellKnown() (id MIME, ok bool) {
	return p.id, p.wellKnown
}

// Payload returns bytes of metadata payload.
func (p *CompositeMetadata) Payload() []byte {
	return p.payload
}

func (p *CompositeMetadata) String() string {
	return fmt.Sprintf("CompositeMetadata{MIME=%s,payload=%s}", p.MIME(), p.payload)
}

// Len returns encoded length.
func (p *CompositeMetadata) Len() int {
	n := 1 + 3 + len(p.payload)
	if !p.wellKnown {
		n += len(p.mime)
	}
	return n
}

// WriteTo writes the encoded entry.
func (p *CompositeMetadata) WriteTo(w io.Writer) (n int64, err error) {
	bs, err := p.Bytes()
	if err != nil {
		return
	}
	wrote, err := w.Write(bs)
	n = int64(wrote)
	return
}

// Bytes encodes the entry.
func (p *CompositeMetadata) Bytes() ([]byte, error) {
	if !p.wellKnown && (len(p.mime) < 1 || len(p.mime) > maxMIMELen) {
		return nil, errMIMELengthExceed
	}
	size, err := u24.NewUint24(len(p.payload))
	if err != nil {
		return nil, err
	}
	bs := make([]byte, 0, p.Len())
	if p.wellKnown {
		bs = append(bs, 0x80|byte(p.id))
	} else {
		bs = append(bs, byte(len(p.mime)))
		bs = append(bs, p.mime...)
	}
	bs = append(bs, size.Bytes()...)
	bs = append(bs, p.payload...)
	return bs, nil
}

// DecodeCompositeMetadata decode bytes to composite metadata entries.
// Payloads share memory with raw.
func DecodeCompositeMetadata(raw []byte) ([]*CompositeMetadata, error) {
	var ret []*CompositeMetadata
	scanner := NewCompositeMetadataScanner(raw)
	for scanner.Scan() {
		ret = append(ret, scanner.Entry())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// EncodeCompositeMetadata encodes entries to bytes.
func EncodeCompositeMetadata(entries ...*CompositeMetadata) ([]byte, error) {
	var ret []byte
	for _, it := range entries {
		bs, err := it.Bytes()
		if err != nil {
			return nil, err
		}
		ret = append(ret, bs...)
	}
	if ret == nil {
		ret = []byte{}
	}
	return ret, nil
}

// FindCompositeMetadata returns payload of the first entry with given MIME type.
func FindCompositeMetadata(raw []byte, mime string) (payload []byte, ok bool) {
	scanner := NewCompositeMetadataScanner(raw)
	for scanner.Scan() {
		if entry := scanner.Entry(); entry.MIME() == mime {
			return entry.Payload(), true
		}
	}
	return
}

// CompositeMetadataScanner iterates entries of composite metadata.
type CompositeMetadataScanner struct {
	raw    []byte
	offset int
	entry  *CompositeMetadata
	err    error
}

// NewCompositeMetadataScanner creates a scanner over raw composite metadata.
func NewCompositeMetadataScanner(raw []byte) *CompositeMetadataScanner {
	return &CompositeMetadataScanner{raw: raw}
}

// Scan advances to next entry, it returns false at the end or on error.
func (s *CompositeMetadataScanner) Scan() bool {
	if s.err != nil || s.offset >= len(s.raw) {
		return false
	}
	l, entry, err := decodeCompositeMetadataOnce(s.raw[s.offset:])
	if err != nil {
		s.err = err
		return false
	}
	s.offset += l
	s.entry = entry
	return true
}

// Entry returns current entry.
func (s *CompositeMetadataScanner) Entry() *CompositeMetadata {
	return s.entry
}

// Err returns the first decode error.
func (s *CompositeMetadataScanner) Err() error {
	return s.err
}

func decodeCompositeMetadataOnce(raw []byte) (l int, cm *CompositeMetadata, err error) {
	m := raw[0]
	size := 1
	idOrLen := m & 0x7F
	cm = &CompositeMetadata{}
	if m&0x80 == 0x80 {
		cm.id = MIME(idOrLen)
		cm.wellKnown = true
	} else {
		size += int(idOrLen)
		if idOrLen == 0 || len(raw) < size {
			err = errors.Wrap(errInvalidCompositeMetadata, "broken MIME type")
			return
		}
		cm.mime = string(raw[1:size])
	}
	if len(raw) < size+3 {
		err = errors.Wrap(errInvalidCompositeMetadata, "broken payload length")
		return
	}
	end := size + 3 + u24.ReadUint24ToInt(raw[size:])
	if len(raw) < end {
		err = errors.Wrap(errInvalidCompositeMetadata, "broken payload")
		return
	}
	cm.payload = raw[size+3 : end]
	return end, cm, nil
}

// CompositeMetadataBuilder can be used to build composite metadata.
type CompositeMetadataBuilder struct {
	entries []*CompositeMetadata
}

// NewCompositeMetadataBuilder creates a builder.
func NewCompositeMetadataBuilder() *CompositeMetadataBuilder {
	return &CompositeMetadataBuilder{}
}

// Push appends an entry with MIME string.
func (b *CompositeMetadataBuilder) Push(mime string, payload []byte) *CompositeMetadataBuilder {
	b.entries = append(b.entries, NewCompositeMetadata(mime, payload))
	return b
}

// PushWellKnown appends an entry with well-known MIME id.
func (b *CompositeMetadataBuilder) PushWellKnown(id MIME, payload []byte) *CompositeMetadataBuilder {
	b.entries = append(b.entries, NewWellKnownCompositeMetadata(id, payload))
	return b
}

// Build encodes all entries.
func (b *CompositeMetadataBuilder) Build() ([]byte, error) {
	return EncodeCompositeMetadata(b.entries...)
}

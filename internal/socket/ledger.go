package socket

import (
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core/framing"
)

// LedgerOptions bounds the frames retained for resume.
// Zero means unbounded.
type LedgerOptions struct {
	MaxBytes  int
	MaxFrames int
}

type ledgerEntry struct {
	pos   uint64
	frame *framing.Frame
}

// ledger keeps resumable frames written since the last acknowledged position.
// Positions are byte counts of resumable frames.
type ledger struct {
	opts    LedgerOptions
	entries []ledgerEntry
	bytes   int
	first   uint64
	next    uint64
}

func newLedger(opts LedgerOptions) *ledger {
	return &ledger{opts: opts}
}

// append records a written frame.
func (l *ledger) append(f *framing.Frame) {
	size := f.Len()
	l.entries = append(l.entries, ledgerEntry{pos: l.next, frame: f})
	l.bytes += size
	l.next += uint64(size)
	for len(l.entries) > 1 && l.overflow() {
		l.dropFirst()
	}
}

func (l *ledger) overflow() bool {
	if l.opts.MaxFrames > 0 && len(l.entries) > l.opts.MaxFrames {
		return true
	}
	return l.opts.MaxBytes > 0 && l.bytes > l.opts.MaxBytes
}

func (l *ledger) dropFirst() {
	e := l.entries[0]
	l.entries[0] = ledgerEntry{}
	l.entries = l.entries[1:]
	size := e.frame.Len()
	l.bytes -= size
	l.first = e.pos + uint64(size)
}

// trim drops frames acknowledged by the peer.
func (l *ledger) trim(pos uint64) {
	for len(l.entries) > 0 {
		e := l.entries[0]
		if e.pos+uint64(e.frame.Len()) > pos {
			break
		}
		l.dropFirst()
	}
	if len(l.entries) == 0 && pos > l.first && pos <= l.next {
		l.first = pos
	}
}

// firstAvailable returns the position of the oldest retained frame.
func (l *ledger) firstAvailable() uint64 {
	return l.first
}

// position returns the position after the last written frame.
func (l *ledger) position() uint64 {
	return l.next
}

// replay trims frames before pos and returns the rest in written order.
func (l *ledger) replay(pos uint64) ([]*framing.Frame, error) {
	if pos < l.first || pos > l.next {
		return nil, errors.Errorf("position %d is out of ledger range [%d,%d]", pos, l.first, l.next)
	}
	l.trim(pos)
	if len(l.entries) > 0 && l.entries[0].pos != pos {
		return nil, errors.Errorf("position %d is not a frame boundary", pos)
	}
	ret := make([]*framing.Frame, 0, len(l.entries))
	for _, e := range l.entries {
		ret = append(ret, e.frame)
	}
	return ret, nil
}

func (l *ledger) len() int {
	return len(l.entries)
}

package transport

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/internal/u24"
	"github.com/rsocket/rsocket-engine/logger"
)

// TCPConn is RSocket connection for stream transports such as TCP, unix socket and pipe.
// Every frame is prefixed with its length in u24.
type TCPConn struct {
	conn    net.Conn
	writer  *bufio.Writer
	decoder *LengthBasedFrameDecoder
	counter *core.TrafficCounter
	valve   *Valve
}

// SetCounter bind a counter which can count r/w bytes.
func (p *TCPConn) SetCounter(c *core.TrafficCounter) {
	p.counter = c
}

// SetValve bind a valve which limits r/w rate.
func (p *TCPConn) SetValve(v *Valve) {
	p.valve = v
}

// SetDeadline set deadline for current connection.
// After this deadline, connection will be closed.
func (p *TCPConn) SetDeadline(deadline time.Time) error {
	return p.conn.SetReadDeadline(deadline)
}

// Read reads next frame from Conn.
func (p *TCPConn) Read() (next *framing.Frame, err error) {
	for {
		var raw []byte
		raw, err = p.decoder.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			err = errors.Wrap(err, "read frame failed")
			return
		}
		p.valve.rxWait(len(raw) + lengthFieldSize)
		// decoder reuses its buffer, frames must own their bytes.
		next, err = framing.Decode(common.CloneBytes(raw))
		if err == framing.ErrIgnoredFrame {
			logger.Debugf("omit unknown frame: %s\n", core.ParseFrameHeader(raw))
			continue
		}
		if err != nil {
			err = errors.Wrap(err, "decode frame failed")
			return
		}
		if p.counter != nil && next.Resumable() {
			p.counter.IncReadBytes(len(raw))
		}
		if logger.IsDebugEnabled() {
			logger.Debugf("<--- rcv: %s\n", framing.PrintFrame(next))
		}
		return
	}
}

// Flush flush data.
func (p *TCPConn) Flush() (err error) {
	err = p.writer.Flush()
	if err != nil {
		err = errors.Wrap(err, "flush failed")
	}
	return
}

// Write writes a frame.
func (p *TCPConn) Write(next *framing.Frame) (err error) {
	if err = next.Validate(); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	size := next.Len()
	bf := common.BorrowByteBuff()
	defer common.ReturnByteBuff(bf)
	if _, err = u24.MustNewUint24(size).WriteTo(bf); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	if _, err = next.WriteTo(bf); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	p.valve.txWait(bf.Len())
	if _, err = p.writer.Write(bf.Bytes()); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	if p.counter != nil && next.Resumable() {
		p.counter.IncWriteBytes(size)
	}
	if logger.IsDebugEnabled() {
		logger.Debugf("---> snd: %s\n", framing.PrintFrame(next))
	}
	return
}

// Close close current connection.
func (p *TCPConn) Close() error {
	return p.conn.Close()
}

// NewTCPConn creates a new RSocket connection over a stream net.Conn.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{
		conn:    conn,
		writer:  bufio.NewWriterSize(conn, common.DefaultTCPWriteBuffSize),
		decoder: NewLengthBasedFrameDecoder(conn),
	}
}

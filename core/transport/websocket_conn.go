package transport

import (
	"io"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/internal/common"
	"github.com/rsocket/rsocket-engine/logger"
)

// RawWsConn is the part of *websocket.Conn used by WsConn.
type RawWsConn interface {
	io.Closer
	SetReadDeadline(time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// WsConn is RSocket connection for websocket transport, one frame per binary message.
type WsConn struct {
	c       RawWsConn
	counter *core.TrafficCounter
	valve   *Valve
}

// SetCounter bind a counter which can count r/w bytes.
func (p *WsConn) SetCounter(c *core.TrafficCounter) {
	p.counter = c
}

// SetValve bind a valve which limits r/w rate.
func (p *WsConn) SetValve(v *Valve) {
	p.valve = v
}

// SetDeadline set deadline for current connection.
func (p *WsConn) SetDeadline(deadline time.Time) error {
	return p.c.SetReadDeadline(deadline)
}

// Read reads next frame from Conn.
func (p *WsConn) Read() (f *framing.Frame, err error) {
	for {
		var (
			t   int
			raw []byte
		)
		t, raw, err = p.c.ReadMessage()
		if err == io.EOF || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = io.EOF
			return
		}
		if err != nil {
			err = errors.Wrap(err, "read frame failed")
			return
		}
		if t != websocket.BinaryMessage {
			logger.Warnf("omit non-binary message %d\n", t)
			continue
		}
		p.valve.rxWait(len(raw))
		f, err = framing.Decode(raw)
		if err == framing.ErrIgnoredFrame {
			continue
		}
		if err != nil {
			err = errors.Wrap(err, "decode frame failed")
			return
		}
		if p.counter != nil && f.Resumable() {
			p.counter.IncReadBytes(len(raw))
		}
		if logger.IsDebugEnabled() {
			logger.Debugf("<--- rcv: %s\n", framing.PrintFrame(f))
		}
		return
	}
}

// Flush does nothing, every frame is sent as a single message.
func (p *WsConn) Flush() (err error) {
	return
}

// Write writes a frame.
func (p *WsConn) Write(frame *framing.Frame) (err error) {
	if err = frame.Validate(); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	bf := common.BorrowByteBuff()
	defer common.ReturnByteBuff(bf)
	if _, err = frame.WriteTo(bf); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	p.valve.txWait(bf.Len())
	err = p.c.WriteMessage(websocket.BinaryMessage, bf.Bytes())
	if err == io.EOF {
		return
	}
	if err != nil {
		err = errors.Wrap(err, "write frame failed")
		return
	}
	if p.counter != nil && frame.Resumable() {
		p.counter.IncWriteBytes(bf.Len())
	}
	if logger.IsDebugEnabled() {
		logger.Debugf("---> snd: %s\n", framing.PrintFrame(frame))
	}
	return
}

// Close close current connection.
func (p *WsConn) Close() error {
	return p.c.Close()
}

// NewWebsocketConnection creates a new websocket RSocket connection.
func NewWebsocketConnection(rawConn RawWsConn) *WsConn {
	return &WsConn{
		c: rawConn,
	}
}

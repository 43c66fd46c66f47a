package socket

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/logger"
)

type simpleClientSocket struct {
	*DuplexConnection
	tp transport.ClientTransporter
}

// NewClient creates a simple client-side socket.
func NewClient(tp transport.ClientTransporter, conn *DuplexConnection) ClientSocket {
	return &simpleClientSocket{
		DuplexConnection: conn,
		tp:               tp,
	}
}

func (p *simpleClientSocket) Setup(ctx context.Context, connectTimeout time.Duration, setup *SetupInfo) error {
	tp, err := p.dialSetup(ctx, p.tp, connectTimeout, setup)
	if err != nil {
		return err
	}
	go func() {
		_ = p.LoopWrite(ctx)
	}()
	go func() {
		err := <-serve(ctx, tp)
		if err != nil {
			logger.Warnf("client exit failed: %+v\n", err)
		}
		p.transportLost(tp, err)
	}()
	return nil
}

type resumeClientSocket struct {
	*DuplexConnection
	tp             transport.ClientTransporter
	opts           ResumeOptions
	setupInfo      *SetupInfo
	connectTimeout time.Duration
}

// NewResumableClient creates a client-side socket which resumes its session after the transport is lost.
// The connection must keep a ledger.
func NewResumableClient(tp transport.ClientTransporter, conn *DuplexConnection, opts ResumeOptions) ClientSocket {
	return &resumeClientSocket{
		DuplexConnection: conn,
		tp:               tp,
		opts:             opts.withDefaults(),
	}
}

func (p *resumeClientSocket) Setup(ctx context.Context, connectTimeout time.Duration, setup *SetupInfo) error {
	if len(setup.Token) < 1 {
		return errors.New("resume token is required")
	}
	p.setupInfo, p.connectTimeout = setup, connectTimeout
	tp, err := p.dialSetup(ctx, p.tp, connectTimeout, setup)
	if err != nil {
		return err
	}
	go func() {
		_ = p.LoopWrite(ctx)
	}()
	go p.loopServe(ctx, tp, serve(ctx, tp))
	return nil
}

func (p *resumeClientSocket) loopServe(ctx context.Context, tp *transport.Transport, done <-chan error) {
	for {
		err := <-done
		if err != nil && logger.IsDebugEnabled() {
			logger.Debugf("resumable client stopped: %s\n", err)
		}
		if p.transportLost(tp, err) != SessionResuming {
			return
		}
		if tp, done = p.reconnect(ctx); tp == nil {
			return
		}
	}
}

// reconnect resumes the session on a new transport until the session duration passed.
func (p *resumeClientSocket) reconnect(ctx context.Context) (*transport.Transport, <-chan error) {
	deadline := time.Now().Add(p.opts.SessionDuration)
	for attempt := 1; ; attempt++ {
		select {
		case <-p.ctx.Done():
			return nil, nil
		case <-time.After(p.opts.ReconnectDelay):
		}
		if time.Now().After(deadline) {
			_ = p.closeWith(errResumeWindowPassed)
			return nil, nil
		}
		tp, err := dial(ctx, p.tp, p.connectTimeout)
		if err == nil {
			tp.SetLifetime(p.setupInfo.KeepaliveLifetime)
			var done <-chan error
			done, err = p.handshakeResume(ctx, tp, p.setupInfo.Token, p.opts.HandshakeTimeout)
			if err == nil {
				logger.Infof("session resumed after %d attempts\n", attempt)
				return tp, done
			}
			var rejected *core.Error
			if errors.As(err, &rejected) {
				logger.Errorf("resume failed: %s\n", err)
				_ = p.closeWith(err)
				return nil, nil
			}
		}
		logger.Warnf("resume attempt %d failed: %s\n", attempt, err)
	}
}

func dial(ctx context.Context, tp transport.ClientTransporter, timeout time.Duration) (*transport.Transport, error) {
	if timeout > 0 {
		c, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ctx = c
	}
	return tp(ctx)
}

// dialSetup creates a transport and sends the SETUP frame on it.
func (p *DuplexConnection) dialSetup(
	ctx context.Context,
	tp transport.ClientTransporter,
	timeout time.Duration,
	setup *SetupInfo,
) (*transport.Transport, error) {
	conn, err := dial(ctx, tp, timeout)
	if err != nil {
		_ = p.closeWith(core.NewTransportError(err))
		return nil, err
	}
	conn.SetLifetime(setup.KeepaliveLifetime)
	p.bind(conn)
	// SETUP must be the first frame
	if err := conn.Send(setup.toFrame(), true); err != nil {
		_ = conn.Close()
		_ = p.closeWith(core.NewTransportError(err))
		return nil, err
	}
	p.attach(conn, nil)
	return conn, nil
}

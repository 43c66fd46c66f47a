package socket_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/uuid"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/core/framing"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type resumeServer struct {
	l         *transport.PipeListener
	sc        rx.Scheduler
	responder socket.RSocket
	wg        sync.WaitGroup

	mu      sync.Mutex
	sockets map[string]socket.ServerSocket
	reject  bool
	// client end of the last dialed connection
	last net.Conn
}

func newResumeServer(t *testing.T, responder socket.RSocket) *resumeServer {
	sc, err := rx.NewElasticScheduler(16)
	require.NoError(t, err)
	s := &resumeServer{
		l:         transport.NewPipeListener("resume"),
		sc:        sc,
		responder: responder,
		sockets:   make(map[string]socket.ServerSocket),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			c, err := s.l.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(transport.NewTransport(transport.NewTCPConn(c)))
			}()
		}
	}()
	return s
}

func (s *resumeServer) handle(tp *transport.Transport) {
	first, err := tp.ReadFirst(context.Background())
	if err != nil {
		return
	}
	switch first.Type {
	case core.FrameTypeSetup:
		conn := socket.NewServerDuplexConnection(socket.DuplexOptions{
			Scheduler: s.sc,
			Resumable: true,
		})
		ss := socket.NewResumableServerSocket(conn, first.Token)
		ss.SetResponder(s.responder)
		ss.SetTransport(tp)
		s.mu.Lock()
		s.sockets[string(first.Token)] = ss
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_ = ss.Start(context.Background())
		}()
		ss.Pause(tp, tp.Start(context.Background()))
	case core.FrameTypeResume:
		s.mu.Lock()
		ss, ok := s.sockets[string(first.Token)]
		reject := s.reject
		s.mu.Unlock()
		if !ok || reject {
			_ = tp.Send(framing.NewErrorFrame(0, core.ErrorCodeRejectedResume, []byte("no such session")), true)
			_ = tp.Close()
			return
		}
		if err := ss.Resume(tp, first.LastReceivedPosition, first.FirstAvailablePosition); err != nil {
			_ = tp.Send(framing.NewErrorFrameFromError(0, err), true)
			_ = tp.Close()
			return
		}
		ss.Pause(tp, tp.Start(context.Background()))
	default:
		_ = tp.Close()
	}
}

func (s *resumeServer) dial(ctx context.Context) (*transport.Transport, error) {
	c, err := s.l.Dial(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.last = c
	s.mu.Unlock()
	return transport.NewTransport(transport.NewTCPConn(c)), nil
}

// breakConnection closes the current connection of the client.
func (s *resumeServer) breakConnection() {
	s.mu.Lock()
	c := s.last
	s.mu.Unlock()
	_ = c.Close()
}

func (s *resumeServer) Close() {
	_ = s.l.Close()
	s.mu.Lock()
	sockets := make([]socket.ServerSocket, 0, len(s.sockets))
	for _, ss := range s.sockets {
		sockets = append(sockets, ss)
	}
	s.mu.Unlock()
	for _, ss := range sockets {
		_ = ss.Close()
	}
	s.wg.Wait()
	_ = s.sc.Close()
}

func connectResumable(t *testing.T, s *resumeServer) (socket.ClientSocket, *socket.DuplexConnection) {
	conn := socket.NewClientDuplexConnection(socket.DuplexOptions{
		Scheduler: s.sc,
		Resumable: true,
	})
	client := socket.NewResumableClient(s.dial, conn, socket.ResumeOptions{
		SessionDuration:  5 * time.Second,
		ReconnectDelay:   50 * time.Millisecond,
		HandshakeTimeout: time.Second,
	})
	setup := defaultSetup()
	setup.Token = []byte(uuid.New().String())
	require.NoError(t, client.Setup(context.Background(), time.Second, setup))
	return client, conn
}

func TestResume_RequestsAreHandledOnce(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()
	handled := atomic.NewInt32(0)
	s := newResumeServer(t, socket.AbstractRSocket{
		RR: func(_ context.Context, msg payload.Payload) *rx.Mono {
			handled.Inc()
			return rx.JustMono(payload.Clone(msg))
		},
	})
	defer s.Close()
	client, _ := connectResumable(t, s)
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := client.RequestResponse(ctx, payload.NewString("before", "")).Block(ctx)
	require.NoError(t, err)
	assert.Equal(t, "before", res.DataUTF8())

	s.breakConnection()
	require.Eventually(t, func() bool {
		return client.State() == socket.SessionResuming
	}, time.Second, 5*time.Millisecond)

	// queued until the session is resumed
	res, err = client.RequestResponse(ctx, payload.NewString("after", "")).Block(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after", res.DataUTF8())
	assert.Equal(t, socket.SessionActive, client.State())
	assert.Equal(t, int32(2), handled.Load(), "every request should be handled exactly once")
}

func TestResume_Rejected(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()
	s := newResumeServer(t, echoResponder())
	defer s.Close()
	client, _ := connectResumable(t, s)
	closed := make(chan error, 1)
	client.OnClose(func(err error) {
		closed <- err
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.RequestResponse(ctx, payload.NewString("before", "")).Block(ctx)
	require.NoError(t, err)

	s.mu.Lock()
	s.reject = true
	s.mu.Unlock()
	s.breakConnection()

	select {
	case err := <-closed:
		assert.True(t, core.IsResumeRejected(err), "should be closed with REJECTED_RESUME")
	case <-time.After(3 * time.Second):
		t.Error("client session should be closed")
	}
	assert.Equal(t, socket.SessionClosed, client.State())
}

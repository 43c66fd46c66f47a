package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/2tvenom/cbor"
	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine"
	"github.com/rsocket/rsocket-engine/core/transport"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/lease"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	appJSON   = "application/json"
	appCBOR   = "application/cbor"
	appBinary = "application/octet-stream"
	textPlain = "text/plain"
)

// Runner runs the client or the server described by the flags.
type Runner struct {
	Stream           bool
	Request          bool
	FNF              bool
	Channel          bool
	MetadataPush     bool
	ServerMode       bool
	Input            string
	Metadata         string
	Headers          []string
	TransportHeaders []string
	Route            string
	MetadataFormat   string
	DataFormat       string
	Setup            string
	Debug            bool
	Ops              int
	Timeout          time.Duration
	Keepalive        time.Duration
	N                int
	Resume           bool
	Lease            bool
	LeaseRequests    int
	LeaseInterval    time.Duration
	URI              string

	logger *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	// transports override URI when set
	clientTransport transport.ClientTransporter
	serverTransport transport.ServerTransporter
	// notified once the server is listening
	onServe func()
}

func (p *Runner) preflight() (err error) {
	if p.logger == nil {
		if p.Debug {
			p.logger, err = zap.NewDevelopment()
		} else {
			p.logger, err = zap.NewProduction()
		}
		if err != nil {
			return
		}
		logger.SetLogger(logger.NewZapLogger(p.logger))
	}
	if p.Debug {
		logger.SetLevel(logger.LevelDebug)
	} else {
		logger.SetLevel(logger.LevelWarn)
	}
	if p.stdin == nil {
		p.stdin = os.Stdin
	}
	if p.stdout == nil {
		p.stdout = os.Stdout
	}
	if p.Ops < 1 {
		p.Ops = 1
	}
	if len(p.Metadata) > 0 && len(p.Headers) > 0 {
		err = errors.New("can't specify headers and metadata")
	}
	return
}

// Run runs the client or the server until it is done.
func (p *Runner) Run() error {
	if err := p.preflight(); err != nil {
		return err
	}
	defer func() {
		_ = p.logger.Sync()
	}()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if p.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if p.ServerMode {
		return p.runServerMode(ctx)
	}
	return p.runClientMode(ctx)
}

func mimeType(format string) string {
	switch format {
	case "", "json":
		return appJSON
	case "cbor":
		return appCBOR
	case "binary":
		return appBinary
	case "text":
		return textPlain
	default:
		return format
	}
}

func readData(input string) (data []byte, err error) {
	switch {
	case strings.HasPrefix(input, "@"):
		data, err = os.ReadFile(input[1:])
	case input != "":
		data = []byte(input)
	}
	return
}

// parseHeaders parses headers like name=value.
func parseHeaders(headers []string) (map[string]string, error) {
	ret := make(map[string]string, len(headers))
	for _, h := range headers {
		idx := strings.Index(h, "=")
		if idx < 1 {
			return nil, errors.Errorf("invalid header: %s", h)
		}
		ret[h[:idx]] = h[idx+1:]
	}
	return ret, nil
}

// buildMetadata returns the metadata of requests in metadataFormat.
func (p *Runner) buildMetadata() (metadata []byte, err error) {
	if len(p.Metadata) > 0 {
		return readData(p.Metadata)
	}
	if len(p.Headers) < 1 {
		return
	}
	headers, err := parseHeaders(p.Headers)
	if err != nil {
		return
	}
	switch mimeType(p.MetadataFormat) {
	case appJSON:
		metadata, err = json.Marshal(headers)
	case appCBOR:
		var buf bytes.Buffer
		encoder := cbor.NewEncoder(&buf)
		if _, err = encoder.Marshal(headers); err != nil {
			err = errors.Wrap(err, "encode cbor headers failed")
			return
		}
		metadata = buf.Bytes()
	default:
		err = errors.Errorf("headers not supported with mimetype: %s", p.MetadataFormat)
	}
	return
}

// metadataMimeType returns the metadata MIME type of the setup.
func (p *Runner) metadataMimeType() string {
	if p.Route != "" {
		return extension.MessageCompositeMetadata.String()
	}
	return mimeType(p.MetadataFormat)
}

// toPayload creates the payload sent for data.
func (p *Runner) toPayload(data, metadata []byte) (payload.Payload, error) {
	if p.Route == "" {
		return payload.New(data, metadata), nil
	}
	spec := rsocket.NewRequester(nil).Route(p.Route).Data(data)
	if len(metadata) > 0 {
		spec.Metadata(mimeType(p.MetadataFormat), metadata)
	}
	return spec.Payload()
}

// inputs emits a payload per input line, the input is a string, '-' (STDIN) or @path/to/file.
func (p *Runner) inputs() *rx.Flux {
	metadata, err := p.buildMetadata()
	if err != nil {
		return rx.ErrorFlux(err)
	}
	if p.Input != "-" && !strings.HasPrefix(p.Input, "@") {
		msg, err := p.toPayload([]byte(p.Input), metadata)
		if err != nil {
			return rx.ErrorFlux(err)
		}
		return rx.JustFlux(msg)
	}
	return rx.NewFlux(func(ctx context.Context, sink *rx.FluxSink) {
		var r io.Reader = p.stdin
		if p.Input != "-" {
			f, err := os.Open(p.Input[1:])
			if err != nil {
				sink.Error(err)
				return
			}
			defer func() {
				_ = f.Close()
			}()
			r = f
		}
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			msg, err := p.toPayload([]byte(scanner.Text()), metadata)
			if err != nil {
				sink.Error(err)
				return
			}
			if err := sink.Next(msg); err != nil {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sink.Error(err)
			return
		}
		sink.Complete()
	})
}

func (p *Runner) firstInput(ctx context.Context) (payload.Payload, error) {
	f := p.inputs()
	defer f.Cancel()
	first, err := f.Next(ctx)
	if err == io.EOF {
		return nil, errors.New("missing input")
	}
	return first, err
}

func (p *Runner) clientTransporter() (transport.ClientTransporter, error) {
	if p.clientTransport != nil {
		return p.clientTransport, nil
	}
	if len(p.TransportHeaders) < 1 {
		return rsocket.NewEndpoint(p.URI).Client(), nil
	}
	u, err := transport.ParseURI(p.URI)
	if err != nil {
		return nil, err
	}
	if !u.IsWebsocket() {
		return nil, errors.Errorf("transport headers need a websocket transport: %s", p.URI)
	}
	headers, err := parseHeaders(p.TransportHeaders)
	if err != nil {
		return nil, err
	}
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	return rsocket.NewEndpoint(p.URI).WithHeader(h).Client(), nil
}

func (p *Runner) serverTransporter() transport.ServerTransporter {
	if p.serverTransport != nil {
		return p.serverTransport
	}
	return rsocket.NewEndpoint(p.URI).Server()
}

func (p *Runner) runClientMode(ctx context.Context) (err error) {
	tp, err := p.clientTransporter()
	if err != nil {
		return
	}
	setupData, err := readData(p.Setup)
	if err != nil {
		return
	}
	cb := rsocket.Connect().
		KeepAlive(p.Keepalive, 3*p.Keepalive).
		DataMimeType(mimeType(p.DataFormat)).
		MetadataMimeType(p.metadataMimeType()).
		SetupPayload(payload.New(setupData, nil))
	if p.Resume {
		cb = cb.Resume()
	}
	if p.Lease {
		cb = cb.Lease(func(l lease.Lease) {
			p.logger.Info("lease received",
				zap.Duration("ttl", l.TimeToLive),
				zap.Uint32("requests", l.NumberOfRequests),
			)
		})
	}
	c, err := cb.Transport(tp).Start(ctx)
	if err != nil {
		return
	}
	defer func() {
		_ = c.Close()
	}()

	for i := 0; i < p.Ops; i++ {
		switch {
		case p.Channel:
			err = p.execRequestChannel(ctx, c, p.inputs())
		case p.FNF:
			err = p.execFireAndForget(ctx, c)
		case p.MetadataPush:
			err = p.execMetadataPush(ctx, c)
		case p.Stream:
			err = p.execRequestStream(ctx, c)
		default:
			err = p.execRequestResponse(ctx, c)
		}
		if err != nil {
			return
		}
	}
	return
}

func (p *Runner) execFireAndForget(ctx context.Context, c rsocket.Client) error {
	msg, err := p.firstInput(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug("FireAndForget", zap.Object("request", payloadMarshaler{msg}))
	return c.FireAndForget(ctx, msg)
}

func (p *Runner) execMetadataPush(ctx context.Context, c rsocket.Client) error {
	metadata, err := p.buildMetadata()
	if err != nil {
		return err
	}
	msg := payload.New(nil, metadata)
	if p.Route != "" {
		spec := rsocket.NewRequester(c).Route(p.Route)
		if len(metadata) > 0 {
			spec.Metadata(mimeType(p.MetadataFormat), metadata)
		}
		if msg, err = spec.Payload(); err != nil {
			return err
		}
	}
	p.logger.Debug("MetadataPush", zap.Object("request", payloadMarshaler{msg}))
	return c.MetadataPush(ctx, msg)
}

func (p *Runner) execRequestResponse(ctx context.Context, c rsocket.Client) error {
	msg, err := p.firstInput(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug("RequestResponse", zap.Object("request", payloadMarshaler{msg}))
	res, err := c.RequestResponse(ctx, msg).Block(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug("RequestResponse", zap.Object("response", payloadMarshaler{res}))
	p.showPayload(res)
	return nil
}

func (p *Runner) execRequestStream(ctx context.Context, c rsocket.Client) error {
	msg, err := p.firstInput(ctx)
	if err != nil {
		return err
	}
	p.logger.Debug("Stream", zap.Object("request", payloadMarshaler{msg}))
	return p.printFlux(ctx, c.RequestStream(ctx, msg))
}

func (p *Runner) execRequestChannel(ctx context.Context, c rsocket.Client, send *rx.Flux) error {
	return p.printFlux(ctx, c.RequestChannel(ctx, send))
}

// printFlux prints at most N elements of f.
func (p *Runner) printFlux(ctx context.Context, f *rx.Flux) error {
	if p.N > 0 && p.N < rx.RequestMax {
		f.LimitRate(p.N)
	}
	for n := 0; p.N < 1 || n < p.N; n++ {
		elem, err := f.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		p.logger.Debug("Stream", zap.Object("response", payloadMarshaler{elem}))
		p.showPayload(elem)
	}
	f.Cancel()
	return nil
}

func (p *Runner) showPayload(msg payload.Payload) {
	_, _ = fmt.Fprintln(p.stdout, msg.DataUTF8())
}

// responder echoes requests, the input is sent instead when it is set.
func (p *Runner) responder() rsocket.RSocket {
	reply := func(ctx context.Context, msg payload.Payload) *rx.Flux {
		if p.Input == "" {
			return rx.JustFlux(payload.Clone(msg))
		}
		return p.inputs()
	}
	return rsocket.NewAbstractSocket(
		rsocket.MetadataPush(func(_ context.Context, msg payload.Payload) {
			p.logger.Debug("MetadataPush", zap.Object("request", payloadMarshaler{msg}))
			metadata, _ := msg.MetadataUTF8()
			_, _ = fmt.Fprintln(p.stdout, metadata)
		}),
		rsocket.FireAndForget(func(_ context.Context, msg payload.Payload) {
			p.logger.Debug("FireAndForget", zap.Object("request", payloadMarshaler{msg}))
			p.showPayload(msg)
		}),
		rsocket.RequestResponse(func(ctx context.Context, msg payload.Payload) *rx.Mono {
			p.logger.Debug("RequestResponse", zap.Object("request", payloadMarshaler{msg}))
			p.showPayload(msg)
			f := reply(ctx, msg)
			return rx.NewMono(func(ctx context.Context) (payload.Payload, error) {
				defer f.Cancel()
				return f.Next(ctx)
			})
		}),
		rsocket.RequestStream(func(ctx context.Context, msg payload.Payload) *rx.Flux {
			p.logger.Debug("RequestStream", zap.Object("request", payloadMarshaler{msg}))
			p.showPayload(msg)
			return reply(ctx, msg)
		}),
		rsocket.RequestChannel(func(_ context.Context, msgs *rx.Flux) *rx.Flux {
			p.logger.Debug("RequestChannel")
			return msgs.DoOnNext(p.showPayload)
		}),
	)
}

func (p *Runner) runServerMode(ctx context.Context) error {
	sb := rsocket.Receive()
	if p.Resume {
		sb = sb.Resume()
	}
	if p.Lease {
		f, err := lease.NewSimpleFactory(p.LeaseInterval, p.LeaseInterval, 0, uint32(p.LeaseRequests))
		if err != nil {
			return err
		}
		sb = sb.Lease(f)
	}
	if p.onServe != nil {
		sb = sb.OnStart(p.onServe)
	}
	return sb.
		Acceptor(func(_ context.Context, setup payload.SetupPayload, _ rsocket.CloseableRSocket) (rsocket.RSocket, error) {
			p.logger.Info("accept connection",
				zap.String("data", setup.DataUTF8()),
				zap.String("dataMimeType", setup.DataMimeType()),
				zap.String("metadataMimeType", setup.MetadataMimeType()),
			)
			return p.responder(), nil
		}).
		Transport(p.serverTransporter()).
		Serve(ctx)
}

type payloadMarshaler struct {
	payload.Payload
}

func (p payloadMarshaler) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("data", p.DataUTF8())
	if metadata, ok := p.MetadataUTF8(); ok {
		encoder.AddString("metadata", metadata)
	}
	return nil
}

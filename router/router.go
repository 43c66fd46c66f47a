// Package router dispatches requests to handlers by the route carried in metadata.
//
// Routes are dot separated. A segment in braces, as in "user.{id}", matches
// any value and exposes it as a path variable. Exact routes win over templates,
// templates with more literal segments win over the others.
package router

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rsocket/rsocket-engine/core"
	"github.com/rsocket/rsocket-engine/extension"
	"github.com/rsocket/rsocket-engine/internal/socket"
	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

type (
	// FireAndForgetHandler serves a FireAndForget.
	FireAndForgetHandler = func(ctx context.Context, msg payload.Payload)
	// MetadataPushHandler serves a MetadataPush.
	MetadataPushHandler = func(ctx context.Context, msg payload.Payload)
	// RequestResponseHandler serves a RequestResponse.
	RequestResponseHandler = func(ctx context.Context, msg payload.Payload) *rx.Mono
	// RequestStreamHandler serves a RequestStream.
	RequestStreamHandler = func(ctx context.Context, msg payload.Payload) *rx.Flux
	// RequestChannelHandler serves a RequestChannel, msgs starts with the request payload.
	RequestChannelHandler = func(ctx context.Context, msgs *rx.Flux) *rx.Flux
)

type kind int8

const (
	kindFireAndForget kind = iota
	kindMetadataPush
	kindRequestResponse
	kindRequestStream
	kindRequestChannel
	kinds
)

var kindNames = [kinds]string{"FNF", "METADATA_PUSH", "RESPONSE", "STREAM", "CHANNEL"}

type handlers [kinds]interface{}

type entry struct {
	*template
	handlers handlers
}

type (
	varsKey  struct{}
	routeKey struct{}
)

// Vars returns the path variables of the route being served.
func Vars(ctx context.Context) map[string]string {
	vars, _ := ctx.Value(varsKey{}).(map[string]string)
	return vars
}

// Var returns a path variable of the route being served.
func Var(ctx context.Context, name string) string {
	return Vars(ctx)[name]
}

// RouteOf returns the route being served.
func RouteOf(ctx context.Context) string {
	route, _ := ctx.Value(routeKey{}).(string)
	return route
}

// NoHandlerError is returned for a route without handler.
func NoHandlerError(route string) *core.Error {
	return core.NewApplicationError(fmt.Sprintf("no handler for destination '%s'", route))
}

// Option configures a Router.
type Option func(*Router)

// WithMetadataMIME sets the metadata MIME type of the connection.
// Routing metadata is read directly, any other type is read as composite metadata.
func WithMetadataMIME(mime string) Option {
	return func(r *Router) {
		r.metadataMIME = mime
	}
}

var _ socket.RSocket = (*Router)(nil)

// Router is a responder socket dispatching requests by route.
type Router struct {
	metadataMIME string

	mu        sync.RWMutex
	seq       int
	exact     map[string]*entry
	templates []*entry
}

// New creates an empty Router reading routes from composite metadata.
func New(opts ...Option) *Router {
	r := &Router{
		metadataMIME: extension.MessageCompositeMetadata.String(),
		exact:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleFireAndForget registers a FireAndForget handler. It panics on an invalid or duplicated route.
func (r *Router) HandleFireAndForget(route string, h FireAndForgetHandler) *Router {
	return r.handle(route, kindFireAndForget, h)
}

// HandleMetadataPush registers a MetadataPush handler.
func (r *Router) HandleMetadataPush(route string, h MetadataPushHandler) *Router {
	return r.handle(route, kindMetadataPush, h)
}

// HandleRequestResponse registers a RequestResponse handler.
func (r *Router) HandleRequestResponse(route string, h RequestResponseHandler) *Router {
	return r.handle(route, kindRequestResponse, h)
}

// HandleRequestStream registers a RequestStream handler.
func (r *Router) HandleRequestStream(route string, h RequestStreamHandler) *Router {
	return r.handle(route, kindRequestStream, h)
}

// HandleRequestChannel registers a RequestChannel handler.
func (r *Router) HandleRequestChannel(route string, h RequestChannelHandler) *Router {
	return r.handle(route, kindRequestChannel, h)
}

// Routes returns the registered routes of each interaction model, sorted.
func (r *Router) Routes() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make(map[string][]string)
	add := func(e *entry) {
		for k, h := range e.handlers {
			if h != nil {
				ret[kindNames[k]] = append(ret[kindNames[k]], e.raw)
			}
		}
	}
	for _, e := range r.exact {
		add(e)
	}
	for _, e := range r.templates {
		add(e)
	}
	for _, v := range ret {
		sort.Strings(v)
	}
	return ret
}

func (r *Router) handle(route string, k kind, h interface{}) *Router {
	t, err := compile(route)
	if err != nil {
		panic(errors.Wrap(err, "router"))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(t)
	if e == nil {
		r.seq++
		t.seq = r.seq
		e = &entry{template: t}
		if t.static() {
			r.exact[route] = e
		} else {
			r.templates = append(r.templates, e)
			sort.SliceStable(r.templates, func(i, j int) bool {
				a, b := r.templates[i], r.templates[j]
				if a.literals != b.literals {
					return a.literals > b.literals
				}
				return a.seq < b.seq
			})
		}
	}
	if e.handlers[k] != nil {
		panic(errors.Errorf("router: duplicated %s handler of route %q", kindNames[k], route))
	}
	e.handlers[k] = h
	return r
}

func (r *Router) find(t *template) *entry {
	if t.static() {
		return r.exact[t.raw]
	}
	for _, e := range r.templates {
		if e.raw == t.raw {
			return e
		}
	}
	return nil
}

// lookup resolves the handler of msg and returns the context to serve it with.
func (r *Router) lookup(ctx context.Context, msg payload.Payload, k kind) (context.Context, interface{}, error) {
	route, err := r.route(msg)
	if err != nil {
		return ctx, nil, core.NewError(core.ErrorCodeInvalid, []byte(err.Error()))
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		h    interface{}
		vars map[string]string
	)
	if e, ok := r.exact[route]; ok {
		h = e.handlers[k]
	}
	if h == nil {
		parts := strings.Split(route, Separator)
		for _, e := range r.templates {
			if e.handlers[k] == nil {
				continue
			}
			if m, ok := e.match(parts); ok {
				h, vars = e.handlers[k], m
				break
			}
		}
	}
	if h == nil {
		return ctx, nil, NoHandlerError(route)
	}
	ctx = context.WithValue(ctx, routeKey{}, route)
	if vars != nil {
		ctx = context.WithValue(ctx, varsKey{}, vars)
	}
	return ctx, h, nil
}

func (r *Router) route(msg payload.Payload) (string, error) {
	if msg == nil {
		return "", nil
	}
	metadata, ok := msg.Metadata()
	if !ok {
		return "", nil
	}
	if r.metadataMIME == extension.MessageRouting.String() {
		return extension.ParseRoute(metadata)
	}
	raw, ok := extension.FindCompositeMetadata(metadata, extension.MessageRouting.String())
	if !ok {
		return "", nil
	}
	return extension.ParseRoute(raw)
}

// FireAndForget dispatches a FireAndForget.
func (r *Router) FireAndForget(ctx context.Context, msg payload.Payload) error {
	ctx, h, err := r.lookup(ctx, msg, kindFireAndForget)
	if err != nil {
		logger.Warnf("drop FNF: %s\n", err)
		return err
	}
	h.(FireAndForgetHandler)(ctx, msg)
	return nil
}

// MetadataPush dispatches a MetadataPush by the route of the pushed metadata.
func (r *Router) MetadataPush(ctx context.Context, msg payload.Payload) error {
	ctx, h, err := r.lookup(ctx, msg, kindMetadataPush)
	if err != nil {
		logger.Warnf("drop METADATA_PUSH: %s\n", err)
		return err
	}
	h.(MetadataPushHandler)(ctx, msg)
	return nil
}

// RequestResponse dispatches a RequestResponse.
func (r *Router) RequestResponse(ctx context.Context, msg payload.Payload) *rx.Mono {
	ctx, h, err := r.lookup(ctx, msg, kindRequestResponse)
	if err != nil {
		return rx.ErrorMono(err)
	}
	return h.(RequestResponseHandler)(ctx, msg)
}

// RequestStream dispatches a RequestStream.
func (r *Router) RequestStream(ctx context.Context, msg payload.Payload) *rx.Flux {
	ctx, h, err := r.lookup(ctx, msg, kindRequestStream)
	if err != nil {
		return rx.ErrorFlux(err)
	}
	return h.(RequestStreamHandler)(ctx, msg)
}

// RequestChannel dispatches a RequestChannel by the route of its first payload.
func (r *Router) RequestChannel(ctx context.Context, msgs *rx.Flux) *rx.Flux {
	first, err := msgs.Next(ctx)
	if err == io.EOF {
		return rx.ErrorFlux(core.NewError(core.ErrorCodeInvalid, []byte("channel without payload")))
	}
	if err != nil {
		return rx.ErrorFlux(err)
	}
	ctx, h, err := r.lookup(ctx, first, kindRequestChannel)
	if err != nil {
		msgs.Cancel()
		return rx.ErrorFlux(err)
	}
	return h.(RequestChannelHandler)(ctx, rx.StartWith(first, msgs))
}

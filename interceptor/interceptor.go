// Package interceptor decorates sockets of both roles and the setup acceptor.
// Interceptors are ordered by precedence, the lowest one is the outermost wrapper.
package interceptor

import (
	"sort"
	"sync"

	"github.com/rsocket/rsocket-engine/internal/socket"
)

type (
	// RSocket is the logical socket decorated by interceptors.
	RSocket = socket.RSocket
	// Acceptor creates the responder of an accepted connection.
	Acceptor = socket.Acceptor
	// RSocketInterceptor wraps a socket.
	RSocketInterceptor = func(next RSocket) RSocket
	// AcceptorInterceptor wraps an acceptor.
	AcceptorInterceptor = func(next Acceptor) Acceptor
	// Model is the interaction model of an intercepted request.
	Model = socket.Model
)

// Interaction models.
const (
	ModelFireAndForget   = socket.ModelFireAndForget
	ModelRequestResponse = socket.ModelRequestResponse
	ModelRequestStream   = socket.ModelRequestStream
	ModelRequestChannel  = socket.ModelRequestChannel
)

// Precedences of the built-in interceptors.
const (
	PrecedenceRequestLogging   = -1000
	PrecedenceRequesterContext = -500
	PrecedenceMetadataPush     = 0
	PrecedenceResponderContext = 500
	PrecedenceResponderLogging = 1000
)

type entry struct {
	name       string
	precedence int
	seq        int
	rsocket    RSocketInterceptor
	acceptor   AcceptorInterceptor
}

// Registry holds interceptors of the requester, the responder and the acceptor.
// A nil Registry wraps nothing.
type Registry struct {
	mu         sync.RWMutex
	seq        int
	requesters []entry
	responders []entry
	acceptors  []entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) add(to *[]entry, e entry) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.seq = r.seq
	*to = append(*to, e)
	sort.SliceStable(*to, func(i, j int) bool {
		return (*to)[i].precedence < (*to)[j].precedence
	})
	return r
}

// Requester registers an interceptor of outgoing requests.
func (r *Registry) Requester(precedence int, name string, fn RSocketInterceptor) *Registry {
	return r.add(&r.requesters, entry{name: name, precedence: precedence, rsocket: fn})
}

// Responder registers an interceptor of incoming requests.
func (r *Registry) Responder(precedence int, name string, fn RSocketInterceptor) *Registry {
	return r.add(&r.responders, entry{name: name, precedence: precedence, rsocket: fn})
}

// Acceptor registers an interceptor of connection setup.
func (r *Registry) Acceptor(precedence int, name string, fn AcceptorInterceptor) *Registry {
	return r.add(&r.acceptors, entry{name: name, precedence: precedence, acceptor: fn})
}

// Names returns the names of requester, responder and acceptor interceptors in running order.
func (r *Registry) Names() (requesters, responders, acceptors []string) {
	if r == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := func(entries []entry) (ret []string) {
		for _, it := range entries {
			ret = append(ret, it.name)
		}
		return
	}
	return names(r.requesters), names(r.responders), names(r.acceptors)
}

func (r *Registry) snapshot(entries *[]entry) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry(nil), *entries...)
}

func wrap(s RSocket, entries []entry) RSocket {
	for i := len(entries) - 1; i >= 0; i-- {
		s = entries[i].rsocket(s)
	}
	return s
}

// WrapRequester decorates the requester socket of a connection.
func (r *Registry) WrapRequester(s RSocket) RSocket {
	if r == nil {
		return s
	}
	return wrap(s, r.snapshot(&r.requesters))
}

// WrapResponder decorates the responder socket of a connection.
func (r *Registry) WrapResponder(s RSocket) RSocket {
	if r == nil || s == nil {
		return s
	}
	return wrap(s, r.snapshot(&r.responders))
}

// WrapAcceptor decorates an acceptor.
func (r *Registry) WrapAcceptor(a Acceptor) Acceptor {
	if r == nil {
		return a
	}
	entries := r.snapshot(&r.acceptors)
	for i := len(entries) - 1; i >= 0; i-- {
		a = entries[i].acceptor(a)
	}
	return a
}

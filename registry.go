package rsocket

import (
	"sort"
	"sync"

	"github.com/rsocket/rsocket-engine/logger"
	"github.com/rsocket/rsocket-engine/payload"
)

// ClientIDFunc derives the id a connection is registered under from its setup.
// An empty id leaves the connection unregistered.
type ClientIDFunc = func(setup payload.SetupPayload) string

// ClientIDFromSetupData uses the setup data as client id.
func ClientIDFromSetupData(setup payload.SetupPayload) string {
	return setup.DataUTF8()
}

// ConnectionRegistry holds the requesters of accepted connections by client id.
// A connection is removed once it is closed.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]CloseableRSocket
}

func newConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]CloseableRSocket),
	}
}

// Load returns the requester of a client.
func (r *ConnectionRegistry) Load(clientID string) (requester CloseableRSocket, ok bool) {
	r.mu.RLock()
	requester, ok = r.conns[clientID]
	r.mu.RUnlock()
	return
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IDs returns the registered client ids, sorted.
func (r *ConnectionRegistry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Range calls fn for each connection until it returns false.
func (r *ConnectionRegistry) Range(fn func(clientID string, requester CloseableRSocket) bool) {
	r.mu.RLock()
	snapshot := make(map[string]CloseableRSocket, len(r.conns))
	for k, v := range r.conns {
		snapshot[k] = v
	}
	r.mu.RUnlock()
	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

// register stores requester and removes it once closer is closed.
// A connection registered under the same id before is replaced.
func (r *ConnectionRegistry) register(clientID string, requester CloseableRSocket) {
	r.mu.Lock()
	if _, ok := r.conns[clientID]; ok {
		logger.Warnf("client %s is connected already, the old connection is replaced\n", clientID)
	}
	r.conns[clientID] = requester
	r.mu.Unlock()
	requester.OnClose(func(error) {
		r.mu.Lock()
		if r.conns[clientID] == requester {
			delete(r.conns, clientID)
		}
		r.mu.Unlock()
	})
}

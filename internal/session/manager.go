package session

import (
	"container/heap"
	"sync"
	"time"
)

// Manager keeps paused sessions ordered by deadline.
type Manager struct {
	sync.RWMutex
	h *sHeap
	m map[string]*Session
}

// Len returns size of session in current manager.
func (p *Manager) Len() (n int) {
	p.RLock()
	defer p.RUnlock()
	n = len(*p.h)
	return
}

// Push push a new session, a session with the same token is replaced.
func (p *Manager) Push(session *Session) {
	p.Lock()
	defer p.Unlock()
	key := string(session.Token())
	if old, ok := p.m[key]; ok && old.index > -1 {
		heap.Remove(p.h, old.index)
	}
	heap.Push(p.h, session)
	p.m[key] = session
}

// Load returns session with custom token.
func (p *Manager) Load(token []byte) (session *Session, ok bool) {
	p.RLock()
	defer p.RUnlock()
	session, ok = p.m[string(token)]
	return
}

// Remove remove a session with custom token.
func (p *Manager) Remove(token []byte) (session *Session, ok bool) {
	p.Lock()
	defer p.Unlock()
	session, ok = p.m[string(token)]
	if ok {
		if session.index > -1 {
			heap.Remove(p.h, session.index)
		}
		delete(p.m, string(token))
	}
	return
}

// Pop pop earliest session, nil if the manager is empty.
func (p *Manager) Pop() (session *Session) {
	p.Lock()
	defer p.Unlock()
	if len(*p.h) < 1 {
		return nil
	}
	session = heap.Pop(p.h).(*Session)
	delete(p.m, string(session.Token()))
	return
}

// Evict removes and returns every session which is dead at now.
func (p *Manager) Evict(now time.Time) (deads []*Session) {
	p.Lock()
	defer p.Unlock()
	for len(*p.h) > 0 {
		if !(*p.h)[0].IsDead(now) {
			break
		}
		session := heap.Pop(p.h).(*Session)
		delete(p.m, string(session.Token()))
		deads = append(deads, session)
	}
	return
}

// NewManager returns a new blank session manager.
func NewManager() *Manager {
	return &Manager{
		h: &sHeap{},
		m: make(map[string]*Session),
	}
}

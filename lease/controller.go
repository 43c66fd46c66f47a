package lease

import (
	"sync"
	"time"
)

// Controller tracks the budget of current lease.
// A new lease replaces the old one, budgets are never accumulated.
type Controller struct {
	mu       sync.Mutex
	received bool
	deadline time.Time
	tickets  uint32
	now      func() time.Time
}

// NewController creates a controller which has not received any lease.
func NewController() *Controller {
	return &Controller{
		now: time.Now,
	}
}

// Refresh replaces current lease.
func (c *Controller) Refresh(ttl time.Duration, n uint32) {
	c.mu.Lock()
	c.received = true
	c.deadline = c.now().Add(ttl)
	c.tickets = n
	c.mu.Unlock()
}

// Allow consumes one request from current lease.
// It returns a *MissingLeaseError if lease is absent, expired or exhausted.
func (c *Controller) Allow() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.received:
		return &MissingLeaseError{cause: ErrLeaseNotReceived}
	case !c.now().Before(c.deadline):
		return &MissingLeaseError{cause: ErrLeaseExpired}
	case c.tickets < 1:
		return &MissingLeaseError{cause: ErrLeaseNoMoreRequests}
	}
	c.tickets--
	return nil
}

// Remaining returns rest requests of current lease, zero if it is expired.
func (c *Controller) Remaining() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.received || !c.now().Before(c.deadline) {
		return 0
	}
	return c.tickets
}

// Deadline returns the expire time of current lease.
func (c *Controller) Deadline() (deadline time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline, c.received
}

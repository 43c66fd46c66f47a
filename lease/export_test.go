package lease

import "time"

// SetClock replaces the clock of controller.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

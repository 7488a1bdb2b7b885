// Package clock supplies "now" and "tomorrow" in the portal's operational
// timezone. Injectable so tests never depend on wall-clock time.
package clock

import "time"

// Clock is the time source used by the dispatcher, processor and supervisor.
type Clock interface {
	Now() time.Time
	// Tomorrow returns tomorrow's date at midnight in the operational timezone.
	Tomorrow() time.Time
}

type zoneClock struct {
	loc *time.Location
}

// New returns a Clock pinned to the named timezone, e.g. "Asia/Colombo".
func New(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &zoneClock{loc: loc}, nil
}

func (c *zoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *zoneClock) Tomorrow() time.Time {
	now := c.Now()
	y, m, d := now.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Fixed returns a Clock frozen at the given instant, for tests.
func Fixed(at time.Time) Clock {
	return &fixedClock{at: at}
}

type fixedClock struct {
	at time.Time
}

func (c *fixedClock) Now() time.Time { return c.at }

func (c *fixedClock) Tomorrow() time.Time {
	y, m, d := c.at.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.at.Location())
}

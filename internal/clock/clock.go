// Package clock abstracts the time source so decision paths can be tested
// against fixed instants.
package clock

import "time"

// Clock supplies the current time. All timestamps in this service are UTC.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock that always returns the same instant. Test helper.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return f.T }

// Package timeutil puts time access behind a small interface so components
// that schedule or stamp work can be driven by a controlled clock in tests.
package timeutil

import "time"

// Provider supplies the current time.
type Provider interface {
	// Now returns the current time.
	Now() time.Time
}

// Default returns a Provider backed by the system clock.
func Default() Provider { return realTimeProvider{} }

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

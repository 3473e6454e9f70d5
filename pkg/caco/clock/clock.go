// Package clock wraps time functions so that window defaulting and cache
// freshness are testable.
package clock

import "time"

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock implements Clock with actual time.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock implements Clock for testing.
type MockClock struct {
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t.UTC()}
}

func (m *MockClock) Now() time.Time {
	return m.now
}

func (m *MockClock) Since(t time.Time) time.Duration {
	return m.now.Sub(t)
}

// Advance moves the mock clock forward.
func (m *MockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set pins the mock clock to an instant.
func (m *MockClock) Set(t time.Time) {
	m.now = t.UTC()
}

// Package clock abstracts time so sweeps are deterministic under test.
package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Module provides the real clock.
var Module = fx.Module("clock",
	fx.Provide(NewReal),
)

type realClock struct{}

// NewReal returns the wall clock in UTC.
func NewReal() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now().UTC() }

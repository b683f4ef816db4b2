// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject Fake() for deterministic timestamps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fake returns a Clock that always reports t, for deterministic tests.
func Fake(t time.Time) Clock { return fakeClock{t: t} }

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

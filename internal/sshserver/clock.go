// SPDX-License-Identifier: MPL-2.0

package sshserver

import "time"

type (
	// Clock is the time source token expiry is measured against.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	systemClock struct{}
)

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

package core

/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/x-stp/rdapwatch/internal/metrics"
)

// IntervalGate enforces a fixed pause between a sequence of operations.
//
// Every Wait blocks for one whole interval measured from the moment it is
// called, so the pause after an operation never shrinks because the operation
// itself was slow. Each Wait starts from an empty token bucket for that
// reason: tokens refilled while the caller was busy are discarded.
//
// An IntervalGate with a non-positive interval never blocks.
type IntervalGate struct {
	limit    rate.Limit
	interval time.Duration
}

// NewIntervalGate returns a gate for interval.
func NewIntervalGate(interval time.Duration) *IntervalGate {
	if interval <= 0 {
		return &IntervalGate{limit: rate.Inf}
	}
	return &IntervalGate{limit: rate.Every(interval), interval: interval}
}

// Wait blocks for one full interval, or until ctx is done.
//
// Parameters:
//   ctx: Bounds the pause. A deadline closer than the interval makes Wait
//        fail immediately rather than sleep into it.
//
// Returns:
//   nil after the pause, or the context's error.
func (g *IntervalGate) Wait(ctx context.Context) error {
	start := time.Now()
	limiter := rate.NewLimiter(g.limit, 1)
	limiter.AllowN(start, 1)
	err := limiter.Wait(ctx)
	metrics.GetMetrics().ObserveThrottle(time.Since(start))
	return err
}

// Interval returns the configured pause.
func (g *IntervalGate) Interval() time.Duration {
	return g.interval
}

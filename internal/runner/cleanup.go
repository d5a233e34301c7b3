// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runner

import (
	"context"
	"fmt"
	"time"
)

// spawnBackground runs fn in a goroutine tracked by r.background, scoped
// to r.backgroundCtx. cleanup() cancels backgroundCtx and waits on the
// group before Run returns, so no background task can outlive the
// Runner.
func (r *Runner) spawnBackground(fn func(ctx context.Context)) {
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		fn(r.backgroundCtx)
	}()
}

// rateLimitCountdownJobID is the Display job entry used while waiting
// out a rate limit.
const rateLimitCountdownJobID = "rate_limit_countdown"

// startRateLimitCountdown shows a periodically updated countdown job
// in the Display until ctx is cancelled or resetAt passes, then removes
// the job entry: no stale job entries survive a state transition.
func (r *Runner) startRateLimitCountdown(provider string, resetAt time.Time) {
	r.mu.Lock()
	previous := r.state.State
	r.state.State = StateWaitingForRateLimit
	r.mu.Unlock()

	r.display.AddJob(rateLimitCountdownJobID, Job{
		Name:     fmt.Sprintf("waiting for %s rate limit", provider),
		Status:   "waiting",
		Provider: provider,
	})

	r.spawnBackground(func(ctx context.Context) {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		defer r.display.RemoveJob(rateLimitCountdownJobID)
		defer func() {
			r.mu.Lock()
			if r.state.State == StateWaitingForRateLimit {
				r.state.State = previous
			}
			r.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				remaining := resetAt.Sub(now)
				if remaining <= 0 {
					return
				}
				r.display.UpdateJob(rateLimitCountdownJobID, Job{
					Name:     fmt.Sprintf("waiting for %s rate limit", provider),
					Status:   "waiting",
					Provider: provider,
					Message:  remaining.Round(time.Second).String(),
				})
			}
		}
	})
}

package main

import (
	"context"
	"time"
)

// controlThread runs one control cycle per period until ctx is done.
func (b *swerveBase) controlThread(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.cycle(ctx, now.Sub(last))
			last = now
		}
	}
}

// cycle samples orientation, steps an active balance, updates the drivetrain and then
// advances any simulated hardware by dt.
func (b *swerveBase) cycle(ctx context.Context, dt time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sample := b.heading.Sample(ctx)

	if b.balancer.Active() {
		if !sample.Connected {
			b.balancer.End(true)
			b.logger.Warnw("balance cancelled, pitch unavailable")
		} else {
			b.balancer.Execute(dt, sample.Pitch)
			if b.balancer.IsFinished() {
				b.balancer.End(false)
			}
		}
	}

	b.drive.Periodic(dt, sample)

	if b.world != nil {
		b.world.Step(dt)
	}
	for _, s := range b.sims {
		s.Step(dt)
	}
	b.publishTelemetry()
}

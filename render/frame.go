package render

import "time"

// FrameClock delivers frame boundaries.
type FrameClock interface {
	// NextFrame fires at the next frame boundary.
	NextFrame() <-chan time.Time
}

// TickerClock has boundaries every Interval since it was created.
type TickerClock struct {
	Interval time.Duration
	epoch    time.Time
}

func NewFrameClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerClock{Interval: interval, epoch: time.Now()}
}

func (c *TickerClock) NextFrame() <-chan time.Time {
	elapsed := time.Since(c.epoch)
	return time.After(c.Interval - elapsed%c.Interval)
}

package relay

import (
	"math/rand/v2"
	"time"
)

const (
	maxPause     = 10 * time.Second
	jitterWindow = 250 * time.Millisecond
)

// pacer decides how long Run waits between passes. A full batch means more rows are
// likely waiting, so the next pass starts at once. Failures double the pause up to maxPause.
type pacer struct {
	base     time.Duration
	failures int
	jitter   func(time.Duration) time.Duration
}

func newPacer(base time.Duration) *pacer {
	return &pacer{
		base: base,
		jitter: func(d time.Duration) time.Duration {
			return d + rand.N(jitterWindow)
		},
	}
}

func (p *pacer) next(full bool, err error) time.Duration {
	if err == nil {
		p.failures = 0
		if full {
			return 0
		}
		return p.jitter(p.base)
	}

	p.failures++
	pause := p.base
	for i := 0; i < p.failures && pause < maxPause; i++ {
		pause *= 2
	}
	return p.jitter(min(pause, maxPause))
}

package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DomainLimiter spaces out request starts per host.
// Each Fetcher owns its own limiter, so separate runs never share pacing.
type DomainLimiter struct {
	delay time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDomainLimiter creates a limiter that lets one request per host start
// every delay. A delay of zero disables pacing.
func NewDomainLimiter(delay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		delay:    delay,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host may start.
// Concurrent callers for the same host are serialised by the host's token
// bucket, so two of them never start within delay of each other. Different
// hosts never block each other.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	if d == nil || d.delay <= 0 {
		return nil
	}
	return d.limiter(host).Wait(ctx)
}

func (d *DomainLimiter) limiter(host string) *rate.Limiter {
	host = strings.ToLower(host)

	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(d.delay), 1)
		d.limiters[host] = l
	}
	return l
}

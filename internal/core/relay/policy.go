package relay

import "time"

// ReconnectPolicy decides the wait before reconnect attempt n, counted from
// 1. It returns false once n exceeds the allowed number of attempts.
//
// The relay's policies are separate from the API client's request backoff:
// they bound how long live updates may stay down, not request latency.
type ReconnectPolicy interface {
	Next(attempt int) (time.Duration, bool)
}

// FlatPolicy waits the same interval before every attempt. This is the
// mobile client's behavior: 3s between attempts, at most 5 attempts.
type FlatPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultFlatPolicy returns FlatPolicy{3s, 5}.
func DefaultFlatPolicy() FlatPolicy {
	return FlatPolicy{Interval: 3 * time.Second, MaxAttempts: 5}
}

func (p FlatPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt > p.MaxAttempts {
		return 0, false
	}
	return p.Interval, true
}

// ExponentialPolicy waits min(Base*2^attempt, Max). This is the web
// client's behavior: 2s, 4s, then 5s, at most 5 attempts.
type ExponentialPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultExponentialPolicy returns ExponentialPolicy{1s, 5s, 5}.
func DefaultExponentialPolicy() ExponentialPolicy {
	return ExponentialPolicy{Base: time.Second, Max: 5 * time.Second, MaxAttempts: 5}
}

func (p ExponentialPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt > p.MaxAttempts {
		return 0, false
	}

	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.Max > 0 && d >= p.Max {
			return p.Max, true
		}
	}
	return d, true
}

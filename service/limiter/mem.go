package limiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/limitd/limitd/service/rule"
)

type counter struct {
	count   int64
	expires time.Time
}

type memService struct {
	mu       sync.Mutex
	counters map[string]*counter
	now      func() time.Time
}

// MemService returns a memory based Service implementation mirroring the
// redis window semantics, intended for tests and single-node setups.
func MemService() Service {
	return &memService{
		counters: map[string]*counter{},
		now:      time.Now,
	}
}

func (s *memService) Check(r *rule.Rule, identity string) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	s.expire(now)

	var (
		base   = Key(r, identity)
		period = int64(r.Period / time.Second)
		window = now.Unix() / period
	)

	if r.Strategy == rule.StrategyMoving {
		return s.checkMoving(r, base, period, window, now), nil
	}

	return s.checkFixed(r, base, period, window, now), nil
}

func (s *memService) checkFixed(
	r *rule.Rule,
	base string,
	period, window int64,
	now time.Time,
) *Decision {
	var (
		key   = fmt.Sprintf("%s:%d", base, window)
		reset = time.Duration((window+1)*period-now.Unix()) * time.Second
	)

	c, ok := s.counters[key]
	if !ok {
		c = &counter{
			expires: time.Unix((window+1)*period, 0),
		}
		s.counters[key] = c
	}

	c.count++

	if c.count > r.Limit {
		return &Decision{
			Allowed: false,
			Limit:   r.Limit,
			Reset:   reset,
		}
	}

	return &Decision{
		Allowed:   true,
		Limit:     r.Limit,
		Remaining: r.Limit - c.count,
		Reset:     reset,
	}
}

func (s *memService) checkMoving(
	r *rule.Rule,
	base string,
	period, window int64,
	now time.Time,
) *Decision {
	var (
		currKey = fmt.Sprintf("%s:%d", base, window)
		prevKey = fmt.Sprintf("%s:%d", base, window-1)
		elapsed = now.Unix() % period
		weight  = float64(period-elapsed) / float64(period)
		reset   = time.Duration(period-elapsed) * time.Second

		carried int64
	)

	if p, ok := s.counters[prevKey]; ok {
		carried = int64(float64(p.count) * weight)
	}

	c, ok := s.counters[currKey]
	if !ok {
		c = &counter{
			expires: time.Unix((window+2)*period, 0),
		}
	}

	if carried+c.count+1 > r.Limit {
		return &Decision{
			Allowed: false,
			Limit:   r.Limit,
			Reset:   reset,
		}
	}

	s.counters[currKey] = c
	c.count++

	remaining := r.Limit - (carried + c.count)
	if remaining < 0 {
		remaining = 0
	}

	return &Decision{
		Allowed:   true,
		Limit:     r.Limit,
		Remaining: remaining,
		Reset:     reset,
	}
}

func (s *memService) expire(now time.Time) {
	for k, c := range s.counters {
		if now.After(c.expires) {
			delete(s.counters, k)
		}
	}
}

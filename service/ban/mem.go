package ban

import (
	"sync"
	"time"
)

type meta struct {
	offenses int64
	bans     int64
	expires  time.Time
}

type record struct {
	expires time.Time
}

type memService struct {
	mu     sync.Mutex
	policy Policy
	metas  map[string]*meta
	bans   map[string]*record
	now    func() time.Time
}

// MemService returns a memory based Service implementation mirroring the
// redis semantics, intended for tests and single-node setups.
func MemService(policy Policy) Service {
	return &memService{
		policy: policy,
		metas:  map[string]*meta{},
		bans:   map[string]*record{},
		now:    time.Now,
	}
}

func (s *memService) IsBanned(id, scope string) (*Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bans[BanKey(id, scope)]
	if !ok || !s.now().Before(b.expires) {
		return &Status{}, nil
	}

	return &Status{
		Banned:    true,
		Remaining: b.expires.Sub(s.now()),
	}, nil
}

func (s *memService) RecordOffense(id, scope string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		key = OffenseKey(id, scope)
		now = s.now()
	)

	m, ok := s.metas[key]
	if !ok || !now.Before(m.expires) {
		m = &meta{}
		s.metas[key] = m
	}

	m.offenses++
	m.expires = now.Add(s.policy.CounterTTL)

	if m.offenses < s.policy.Offenses {
		return &Outcome{
			Offenses: m.offenses,
			BanCount: m.bans,
		}, nil
	}

	m.bans++
	m.offenses = 0

	duration := s.policy.Escalation(m.bans)

	s.bans[BanKey(id, scope)] = &record{
		expires: now.Add(duration),
	}

	return &Outcome{
		Banned:   true,
		Duration: duration,
		BanCount: m.bans,
	}, nil
}

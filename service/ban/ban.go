package ban

import (
	"strings"
	"time"

	"github.com/limitd/limitd/platform/identity"
)

// Key prefixes separating offense metadata from ban records in the store.
const (
	KeyPrefixBan     = "ban"
	KeyPrefixOffense = "offense"
)

// ScopeSite marks a ban covering every path.
const ScopeSite = ""

// Outcome reports the effect of recording one offense.
type Outcome struct {
	Banned   bool
	Duration time.Duration
	Offenses int64
	BanCount int64
}

// Policy parametrises offense tracking and ban escalation.
type Policy struct {
	Offenses   int64
	Length     time.Duration
	MaxLength  time.Duration
	CounterTTL time.Duration
}

// Escalation returns the ban duration for the nth consecutive ban,
// doubling from Length and capped at MaxLength. The redis implementation
// computes the same progression server-side.
func (p Policy) Escalation(banCount int64) time.Duration {
	d := p.Length

	for i := int64(1); i < banCount; i++ {
		d *= 2

		if d >= p.MaxLength {
			return p.MaxLength
		}
	}

	if d > p.MaxLength {
		return p.MaxLength
	}

	return d
}

// Validate checks for semantic correctness.
func (p Policy) Validate() error {
	if p.Offenses <= 0 {
		return wrapError(ErrInvalidPolicy, "offenses must be positive")
	}

	if p.Length < time.Second {
		return wrapError(ErrInvalidPolicy, "length must be at least a second")
	}

	if p.MaxLength < p.Length {
		return wrapError(ErrInvalidPolicy, "max length must not undercut length")
	}

	if p.CounterTTL < time.Second {
		return wrapError(ErrInvalidPolicy, "counter ttl must be at least a second")
	}

	return nil
}

// Service tracks offenses and bans per identity and scope. IsBanned is
// read-only and never mutates offense state, RecordOffense is called once
// per denied request and escalates into a ban when the threshold is met.
type Service interface {
	IsBanned(identity, scope string) (*Status, error)
	RecordOffense(identity, scope string) (*Outcome, error)
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware func(Service) Service

// Status is the result of a ban lookup.
type Status struct {
	Banned    bool
	Remaining time.Duration
}

// BanKey returns the ban record key for identity and scope.
func BanKey(id, scope string) string {
	return key(KeyPrefixBan, id, scope)
}

// OffenseKey returns the offense metadata key for identity and scope.
func OffenseKey(id, scope string) string {
	return key(KeyPrefixOffense, id, scope)
}

func key(prefix, id, scope string) string {
	ps := []string{
		prefix,
		identity.Hash(id),
	}

	if scope != ScopeSite {
		ps = append(ps, scope)
	}

	return strings.Join(ps, ":")
}

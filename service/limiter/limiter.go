package limiter

import (
	"fmt"
	"time"

	"github.com/limitd/limitd/platform/identity"
	"github.com/limitd/limitd/service/rule"
)

// KeyPrefix namespaces all window counters in the store.
const KeyPrefix = "rl"

// Decision is the outcome of one window check.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Duration
}

// Ratio relates the remaining budget to the limit, used to find the most
// constrained rule among several.
func (d *Decision) Ratio() float64 {
	return float64(d.Remaining) / float64(d.Limit)
}

// Service evaluates a single rule against a single identity. The read,
// comparison, increment and expiry of a check happen as one indivisible
// operation in the backing store.
type Service interface {
	Check(r *rule.Rule, identity string) (*Decision, error)
}

// ServiceMiddleware is a chainable behaviour modifier for Service.
type ServiceMiddleware func(Service) Service

// Key returns the counter namespace for the given rule and identity. The
// window index is appended by the store so unrelated rules and identities
// never contend.
func Key(r *rule.Rule, id string) string {
	return fmt.Sprintf(
		"%s:%s:%s:%s:%d:%d",
		KeyPrefix,
		r.Strategy,
		identity.Hash(id),
		r.Pattern,
		r.Limit,
		int64(r.Period/time.Second),
	)
}

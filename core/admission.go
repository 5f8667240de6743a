package core

import (
	"net/http"
	"time"

	"github.com/limitd/limitd/service/ban"
	"github.com/limitd/limitd/service/limiter"
	"github.com/limitd/limitd/service/rule"
)

// Dispositions for store failures. The choice between failing open and
// failing closed is an explicit configuration decision, never a default.
const (
	DispositionClosed = "closed"
	DispositionOpen   = "open"
)

// Decision is the aggregate admission outcome for one request.
type Decision struct {
	Allowed    bool
	Banned     bool
	Status     int
	Limit      int64
	Remaining  int64
	Reset      time.Duration
	RetryAfter time.Duration
	Policy     string
	Rule       *rule.Rule
}

// Opts carries the admission knobs shared across requests.
type Opts struct {
	BansEnabled bool
	Disposition string
	SiteWide    bool
}

// Validate checks for semantic correctness.
func (o Opts) Validate() error {
	switch o.Disposition {
	case DispositionClosed, DispositionOpen:
		return nil
	}

	return wrapError(ErrInvalidDisposition, "%q", o.Disposition)
}

// AdmissionCheckFunc decides if the request for path from identity is
// served, rate-limited or refused outright.
type AdmissionCheckFunc func(path, id string) (*Decision, error)

// AdmissionCheck orchestrates ban lookup, rule resolution, per-rule window
// checks and offense recording into a single decision per request.
func AdmissionCheck(
	index *rule.Index,
	limits limiter.Service,
	bans ban.Service,
	opts Opts,
) AdmissionCheckFunc {
	return func(path, id string) (*Decision, error) {
		path = rule.NormalizePath(path)

		if index.Exempt(path) {
			return allowUnrestricted(), nil
		}

		if opts.BansEnabled && opts.SiteWide {
			decision, err := checkBan(bans, id, ban.ScopeSite, opts)
			if decision != nil || err != nil {
				return decision, err
			}
		}

		rs := index.Match(path)
		if len(rs) == 0 {
			return allowUnrestricted(), nil
		}

		// Per-endpoint bans attach to rules, so they resolve after the
		// match. A hit refuses the request before any counter moves.
		if opts.BansEnabled && !opts.SiteWide {
			for _, r := range rs {
				decision, err := checkBan(bans, id, r.Pattern, opts)
				if decision != nil || err != nil {
					return decision, err
				}
			}
		}

		// Every matched rule is checked, denial on one does not spare the
		// counters of the others and the headers need the binding rule.
		ds := make([]*limiter.Decision, 0, len(rs))

		for _, r := range rs {
			decision, err := limits.Check(r, id)
			if err != nil {
				if limiter.IsBackend(err) {
					return dispose(opts, err)
				}

				return nil, err
			}

			ds = append(ds, decision)
		}

		var (
			binding = bindingRule(ds)
			d       = ds[binding]
			r       = rs[binding]
		)

		if d.Allowed {
			return &Decision{
				Allowed:   true,
				Status:    http.StatusOK,
				Limit:     d.Limit,
				Remaining: d.Remaining,
				Reset:     d.Reset,
				Policy:    r.Policy(),
				Rule:      r,
			}, nil
		}

		if opts.BansEnabled {
			scope := ban.ScopeSite

			if !opts.SiteWide {
				scope = r.Pattern
			}

			outcome, err := bans.RecordOffense(id, scope)
			if err != nil {
				if ban.IsBackend(err) {
					return dispose(opts, err)
				}

				return nil, err
			}

			if outcome.Banned {
				return &Decision{
					Banned:     true,
					Status:     http.StatusForbidden,
					Reset:      outcome.Duration,
					RetryAfter: outcome.Duration,
					Rule:       r,
				}, nil
			}
		}

		return &Decision{
			Status:     http.StatusTooManyRequests,
			Limit:      d.Limit,
			Reset:      d.Reset,
			RetryAfter: d.Reset,
			Policy:     r.Policy(),
			Rule:       r,
		}, nil
	}
}

func allowUnrestricted() *Decision {
	return &Decision{
		Allowed: true,
		Status:  http.StatusOK,
	}
}

// bindingRule picks the decision reported to the client: the most
// constrained allow, or among denials the one furthest from relief.
func bindingRule(ds []*limiter.Decision) int {
	var (
		allowed = true
		binding = 0
	)

	for _, d := range ds {
		if !d.Allowed {
			allowed = false
		}
	}

	if allowed {
		for i, d := range ds {
			if d.Ratio() < ds[binding].Ratio() {
				binding = i
			}
		}

		return binding
	}

	binding = -1

	for i, d := range ds {
		if d.Allowed {
			continue
		}

		if binding == -1 || d.Reset > ds[binding].Reset {
			binding = i
		}
	}

	return binding
}

func checkBan(
	bans ban.Service,
	id, scope string,
	opts Opts,
) (*Decision, error) {
	status, err := bans.IsBanned(id, scope)
	if err != nil {
		if ban.IsBackend(err) {
			return dispose(opts, err)
		}

		return nil, err
	}

	if !status.Banned {
		return nil, nil
	}

	return &Decision{
		Banned:     true,
		Status:     http.StatusForbidden,
		Reset:      status.Remaining,
		RetryAfter: status.Remaining,
	}, nil
}

// dispose applies the configured disposition to a store failure. Decision
// and error surface together so the boundary always records the failure.
func dispose(opts Opts, err error) (*Decision, error) {
	if opts.Disposition == DispositionOpen {
		return allowUnrestricted(), err
	}

	return &Decision{
		Status:     http.StatusTooManyRequests,
		Reset:      time.Second,
		RetryAfter: time.Second,
	}, err
}

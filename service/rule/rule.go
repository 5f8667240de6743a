package rule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// Strategies to account requests inside a window.
const (
	StrategyFixed  Strategy = "fixed"
	StrategyMoving Strategy = "moving"
)

const wildcardSuffix = "/*"

// List is a Rule collection.
type List []*Rule

// Rule binds a path pattern to a request budget. A pattern is either an
// exact path or a prefix terminated by the wildcard marker "/*".
type Rule struct {
	Pattern  string
	Limit    int64
	Period   time.Duration
	Strategy Strategy

	prefix   string
	wildcard bool
}

// Match indicates if the path falls under the Rule's pattern. Wildcards
// cover the prefix itself and everything below it, never sibling paths
// which merely share leading characters.
func (r *Rule) Match(path string) bool {
	if !r.wildcard {
		return path == r.prefix
	}

	if path == r.prefix || r.prefix == "/" {
		return true
	}

	return strings.HasPrefix(path, r.prefix+"/")
}

// Validate checks for semantic correctness.
func (r *Rule) Validate() error {
	p := r.Pattern

	if strings.HasSuffix(p, wildcardSuffix) {
		p = strings.TrimSuffix(p, wildcardSuffix)

		if p == "" {
			p = "/"
		}
	}

	if !strings.HasPrefix(p, "/") || !govalidator.IsRequestURI(p) {
		return wrapError(ErrInvalidRule, "pattern %q is malformed", r.Pattern)
	}

	if r.Limit <= 0 {
		return wrapError(ErrInvalidRule, "limit must be positive for %q", r.Pattern)
	}

	if r.Period < time.Second {
		return wrapError(ErrInvalidRule, "period must be at least a second for %q", r.Pattern)
	}

	switch r.Strategy {
	case StrategyFixed, StrategyMoving:
	default:
		return wrapError(ErrInvalidRule, "unknown strategy %q for %q", r.Strategy, r.Pattern)
	}

	return nil
}

// Policy returns the rule budget in RateLimit-Policy notation.
func (r *Rule) Policy() string {
	return fmt.Sprintf("%d;w=%d", r.Limit, int64(r.Period/time.Second))
}

// Strategy determines how request counts relate to window boundaries.
type Strategy string

// Index is the compiled set of rate rules and exempt paths. It is
// immutable after Compile, reads need no synchronisation. Reconfiguration
// means compiling a fresh Index and swapping it wholesale.
type Index struct {
	exempt []*Rule
	rules  List
}

// Compile validates and orders the given rules. Exact patterns precede
// wildcards, longer wildcard prefixes precede shorter ones and ties break
// lexicographically, so the order is total and stable.
func Compile(rules List, exempt []string) (*Index, error) {
	i := &Index{
		rules: make(List, 0, len(rules)),
	}

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}

		c := *r
		c.prefix, c.wildcard = splitPattern(r.Pattern)

		i.rules = append(i.rules, &c)
	}

	sort.SliceStable(i.rules, func(a, b int) bool {
		var (
			ra = i.rules[a]
			rb = i.rules[b]
		)

		if ra.wildcard != rb.wildcard {
			return !ra.wildcard
		}

		if len(ra.prefix) != len(rb.prefix) {
			return len(ra.prefix) > len(rb.prefix)
		}

		return ra.prefix < rb.prefix
	})

	for _, p := range exempt {
		if !strings.HasPrefix(p, "/") {
			return nil, wrapError(ErrInvalidRule, "exempt path %q is malformed", p)
		}

		prefix, wildcard := splitPattern(p)

		i.exempt = append(i.exempt, &Rule{
			Pattern:  p,
			prefix:   prefix,
			wildcard: wildcard,
		})
	}

	return i, nil
}

// Exempt indicates if the path bypasses admission control entirely.
func (i *Index) Exempt(path string) bool {
	path = NormalizePath(path)

	for _, r := range i.exempt {
		if r.Match(path) {
			return true
		}
	}

	return false
}

// Len returns the number of compiled rules.
func (i *Index) Len() int {
	return len(i.rules)
}

// Match returns every rule the path falls under, most specific first. An
// empty result means the path is unrestricted.
func (i *Index) Match(path string) List {
	path = NormalizePath(path)

	rs := List{}

	for _, r := range i.rules {
		if r.Match(path) {
			rs = append(rs, r)
		}
	}

	return rs
}

// NormalizePath enforces a leading slash and strips the trailing slash,
// except for the root path.
func NormalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if path != "/" {
		path = strings.TrimRight(path, "/")

		if path == "" {
			path = "/"
		}
	}

	return path
}

func splitPattern(p string) (prefix string, wildcard bool) {
	if strings.HasSuffix(p, wildcardSuffix) {
		prefix = strings.TrimSuffix(p, wildcardSuffix)

		if prefix == "" {
			prefix = "/"
		}

		return prefix, true
	}

	return NormalizePath(p), false
}

package limiter

import (
	"time"

	"github.com/go-kit/kit/log"

	"github.com/limitd/limitd/platform/identity"
	"github.com/limitd/limitd/service/rule"
)

type logService struct {
	logger log.Logger
	next   Service
}

// LogMiddleware given a Logger wraps the next Service with logging capabilities.
func LogMiddleware(logger log.Logger, store string) ServiceMiddleware {
	return func(next Service) Service {
		logger = log.With(
			logger,
			"service", "limiter",
			"store", store,
		)

		return &logService{logger: logger, next: next}
	}
}

func (s *logService) Check(r *rule.Rule, id string) (decision *Decision, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"identity", identity.Hash(id),
			"method", "Check",
			"rule_pattern", r.Pattern,
			"rule_strategy", r.Strategy,
		}

		if decision != nil {
			ps = append(ps,
				"decision_allowed", decision.Allowed,
				"decision_remaining", decision.Remaining,
			)
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.Check(r, id)
}

package ban

import (
	"time"

	"github.com/go-kit/kit/log"

	"github.com/limitd/limitd/platform/identity"
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
			"service", "ban",
			"store", store,
		)

		return &logService{logger: logger, next: next}
	}
}

func (s *logService) IsBanned(id, scope string) (status *Status, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"identity", identity.Hash(id),
			"method", "IsBanned",
			"scope", scope,
		}

		if status != nil {
			ps = append(ps, "banned", status.Banned)
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.IsBanned(id, scope)
}

func (s *logService) RecordOffense(id, scope string) (outcome *Outcome, err error) {
	defer func(begin time.Time) {
		ps := []interface{}{
			"duration_ns", time.Since(begin).Nanoseconds(),
			"identity", identity.Hash(id),
			"method", "RecordOffense",
			"scope", scope,
		}

		if outcome != nil {
			ps = append(ps,
				"banned", outcome.Banned,
				"ban_count", outcome.BanCount,
				"offenses", outcome.Offenses,
			)
		}

		if err != nil {
			ps = append(ps, "err", err)
		}

		_ = s.logger.Log(ps...)
	}(time.Now())

	return s.next.RecordOffense(id, scope)
}

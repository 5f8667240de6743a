package ban

import (
	"time"

	"github.com/gomodule/redigo/redis"

	predis "github.com/limitd/limitd/platform/redis"
)

// Offense count and ban count share one hash and one TTL; the record is
// only ever updated server-side so concurrent denials of one identity
// cannot lose updates. The TTL expiring is the only de-escalation.
const luaRecordOffense = `
local threshold = tonumber(ARGV[1])
local length = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local offenses = redis.call('HINCRBY', KEYS[1], 'offenses', 1)
local bans = tonumber(redis.call('HGET', KEYS[1], 'bans') or '0')
redis.call('EXPIRE', KEYS[1], ttl)

if offenses < threshold then
	return {0, 0, offenses, bans}
end

bans = bans + 1
local duration = math.floor(math.min(length * 2 ^ (bans - 1), max))
redis.call('SET', KEYS[2], '1', 'EX', duration)
redis.call('HSET', KEYS[1], 'offenses', 0, 'bans', bans)

return {1, duration, 0, bans}
`

var recordOffenseScript = redis.NewScript(2, luaRecordOffense)

type redisService struct {
	policy Policy
	pool   *redis.Pool
}

// RedisService returns a redis-backed Service implementation.
func RedisService(pool *redis.Pool, policy Policy) Service {
	return &redisService{
		policy: policy,
		pool:   pool,
	}
}

func (s *redisService) IsBanned(id, scope string) (*Status, error) {
	conn := s.pool.Get()
	defer conn.Close()

	// TTL returns -2 for a missing key and -1 when none is set.
	remaining, err := redis.Int64(conn.Do(predis.CommandTTL, BanKey(id, scope)))
	if err != nil {
		return nil, wrapError(ErrBackend, "ban lookup failed: %s", err)
	}

	if remaining <= 0 {
		return &Status{}, nil
	}

	return &Status{
		Banned:    true,
		Remaining: time.Duration(remaining) * time.Second,
	}, nil
}

func (s *redisService) RecordOffense(id, scope string) (*Outcome, error) {
	conn := s.pool.Get()
	defer conn.Close()

	res, err := redis.Int64s(recordOffenseScript.Do(
		conn,
		OffenseKey(id, scope),
		BanKey(id, scope),
		s.policy.Offenses,
		int64(s.policy.Length/time.Second),
		int64(s.policy.MaxLength/time.Second),
		int64(s.policy.CounterTTL/time.Second),
	))
	if err != nil {
		return nil, wrapError(ErrBackend, "offense record failed: %s", err)
	}

	if len(res) != 4 {
		return nil, wrapError(ErrBackend, "offense record returned reply of length %d", len(res))
	}

	return &Outcome{
		Banned:   res[0] == 1,
		Duration: time.Duration(res[1]) * time.Second,
		Offenses: res[2],
		BanCount: res[3],
	}, nil
}

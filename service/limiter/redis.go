package limiter

import (
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/limitd/limitd/service/rule"
)

// Window checks run server-side so the read, comparison, increment and
// expiry of one check are indivisible. Counter keys carry the window index
// and expire on their own, no explicit cleanup happens.
const (
	luaFixedWindow = `
local limit = tonumber(ARGV[1])
local period = tonumber(ARGV[2])

local now = tonumber(redis.call('TIME')[1])
local window = math.floor(now / period)
local key = KEYS[1] .. ':' .. window
local reset = (window + 1) * period - now

local count = redis.call('INCR', key)
if count == 1 then
	redis.call('EXPIRE', key, period)
end

if count > limit then
	return {0, 0, reset}
end

return {1, limit - count, reset}
`

	luaMovingWindow = `
local limit = tonumber(ARGV[1])
local period = tonumber(ARGV[2])

local now = tonumber(redis.call('TIME')[1])
local window = math.floor(now / period)
local elapsed = now % period
local reset = period - elapsed

local weight = (period - elapsed) / period
local carried = math.floor(tonumber(redis.call('GET', KEYS[1] .. ':' .. (window - 1)) or '0') * weight)
local curr = KEYS[1] .. ':' .. window
local count = tonumber(redis.call('GET', curr) or '0')

if carried + count + 1 > limit then
	return {0, 0, reset}
end

count = redis.call('INCR', curr)
if count == 1 then
	redis.call('EXPIRE', curr, period * 2)
end

local remaining = limit - (carried + count)
if remaining < 0 then
	remaining = 0
end

return {1, remaining, reset}
`
)

var (
	fixedScript  = redis.NewScript(1, luaFixedWindow)
	movingScript = redis.NewScript(1, luaMovingWindow)
)

type redisService struct {
	pool *redis.Pool
}

// RedisService returns a redis-backed Service implementation.
func RedisService(pool *redis.Pool) Service {
	return &redisService{
		pool: pool,
	}
}

func (s *redisService) Check(r *rule.Rule, identity string) (*Decision, error) {
	conn := s.pool.Get()
	defer conn.Close()

	script := fixedScript

	if r.Strategy == rule.StrategyMoving {
		script = movingScript
	}

	res, err := redis.Int64s(script.Do(
		conn,
		Key(r, identity),
		r.Limit,
		int64(r.Period/time.Second),
	))
	if err != nil {
		return nil, wrapError(ErrBackend, "check %s failed: %s", r.Pattern, err)
	}

	if len(res) != 3 {
		return nil, wrapError(ErrBackend, "check %s returned reply of length %d", r.Pattern, len(res))
	}

	return &Decision{
		Allowed:   res[0] == 1,
		Limit:     r.Limit,
		Remaining: res[1],
		Reset:     time.Duration(res[2]) * time.Second,
	}, nil
}

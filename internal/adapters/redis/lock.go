package redisad

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes work on one key across processes (SET NX PX).
type Locker struct {
	c      *redis.Client
	prefix string
}

func NewLocker(c *redis.Client) *Locker { return &Locker{c: c, prefix: "lock:"} }

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.c.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	unlock := func() {
		// release must outlive a cancelled caller context
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.c, []string{l.prefix + key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("lock release failed")
		}
	}
	return unlock, true, nil
}

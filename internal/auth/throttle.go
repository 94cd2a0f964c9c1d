package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttlePrefix = "qb:login:fail:"

// Throttle counts login attempts per user name in redis and locks the name
// once the budget for the window is spent. A successful login resets the
// count, so only consecutive failures accumulate.
type Throttle struct {
	client      redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// NewThrottle constructs a Throttle. A nil client or non-positive budget
// disables throttling.
func NewThrottle(client redis.Cmdable, maxAttempts int, window time.Duration) *Throttle {
	return &Throttle{client: client, maxAttempts: maxAttempts, window: window}
}

func (t *Throttle) enabled() bool {
	return t != nil && t.client != nil && t.maxAttempts > 0 && t.window > 0
}

func key(name string) string {
	return throttlePrefix + strings.ToLower(name)
}

// attemptScript counts one attempt and starts the window on the first one.
var attemptScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Attempt counts a login attempt for name and reports whether it may
// proceed. The count and the limit check happen in one redis step, so
// concurrent attempts cannot overrun the budget. A failed redis call
// admits the attempt and returns the error.
func (t *Throttle) Attempt(ctx context.Context, name string) (bool, error) {
	if !t.enabled() {
		return true, nil
	}
	count, err := attemptScript.Run(ctx, t.client, []string{key(name)}, t.window.Milliseconds()).Int64()
	if err != nil {
		return true, fmt.Errorf("auth: throttle attempt: %w", err)
	}
	return count <= int64(t.maxAttempts), nil
}

// Reset clears the attempt count after a successful login.
func (t *Throttle) Reset(ctx context.Context, name string) error {
	if !t.enabled() {
		return nil
	}
	if err := t.client.Del(ctx, key(name)).Err(); err != nil {
		return fmt.Errorf("auth: throttle reset: %w", err)
	}
	return nil
}

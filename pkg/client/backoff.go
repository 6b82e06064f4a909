package client

import (
	"math/rand"
	"time"
)

// Reconnect policy: capped exponential backoff with full jitter. Each retry
// waits a uniformly random duration in (0, min(cap, base*2^attempt)], which
// spreads a thundering herd of reconnecting clients after a server restart.
const (
	backoffBase = 500 * time.Millisecond
	backoffCap  = 30 * time.Second
)

// Backoff produces successive reconnect delays. Not safe for concurrent use;
// each connection loop owns its own instance.
type Backoff struct {
	attempt int
	rnd     *rand.Rand
}

// NewBackoff creates a backoff sequence seeded from the current time.
func NewBackoff() *Backoff {
	return &Backoff{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Next returns the delay to wait before the next reconnect attempt.
func (b *Backoff) Next() time.Duration {
	ceiling := backoffBase << b.attempt
	if ceiling > backoffCap || ceiling <= 0 {
		ceiling = backoffCap
	} else {
		b.attempt++
	}
	return time.Duration(b.rnd.Int63n(int64(ceiling))) + time.Millisecond
}

// Reset restarts the sequence after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

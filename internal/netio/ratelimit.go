package netio

import (
	"context"

	"go.uber.org/ratelimit"
)

// acceptLimiter turns a blocking ratelimit.Limiter into a non-blocking
// token source: a background goroutine repeatedly calls the blocking
// Take() and pushes a token into a small buffered channel, so the event
// loop thread can poll TryTake() without ever blocking on the limiter.
// The background goroutine never touches connection or cache state —
// only the token channel — so it needs no synchronization with the
// single-threaded event loop it feeds.
type acceptLimiter struct {
	tokens chan struct{}
	cancel context.CancelFunc
}

// newAcceptLimiter starts a limiter admitting at most ratePerSecond new
// connections per second. A ratePerSecond of 0 disables limiting: the
// channel is closed so TryTake always succeeds.
func newAcceptLimiter(ratePerSecond int) *acceptLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	al := &acceptLimiter{
		tokens: make(chan struct{}, 64),
		cancel: cancel,
	}

	if ratePerSecond <= 0 {
		close(al.tokens)
		al.cancel = func() {}
		return al
	}

	limiter := ratelimit.New(ratePerSecond)
	go al.provider(ctx, limiter)
	return al
}

func (al *acceptLimiter) provider(ctx context.Context, limiter ratelimit.Limiter) {
	for {
		limiter.Take()
		select {
		case al.tokens <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}

// TryTake reports whether an accept token is currently available,
// consuming it if so.
func (al *acceptLimiter) TryTake() bool {
	select {
	case _, ok := <-al.tokens:
		if !ok {
			return true // unlimited: closed channel always "has" a token
		}
		return true
	default:
		return false
	}
}

// Close stops the background provider goroutine.
func (al *acceptLimiter) Close() {
	al.cancel()
}

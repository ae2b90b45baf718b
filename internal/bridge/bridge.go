package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/timeline"
)

// State of the sync state machine.
type State int

const (
	Idle State = iota
	Syncing
	Applying
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Applying:
		return "applying"
	default:
		return "unknown"
	}
}

// Remote is the subset of the remote ledger client the bridge needs.
type Remote interface {
	Modify(ctx context.Context, token string, req api.ModifyRequest) (api.User, error)
	User(ctx context.Context, token string) (api.User, error)
}

// TokenSource yields the current session token. ok=false means the
// client is signed out and the ledger runs locally only.
type TokenSource interface {
	Token() (token string, ok bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token implements TokenSource.
func (f TokenFunc) Token() (string, bool) { return f() }

// Stats counts bridge activity since creation.
type Stats struct {
	Sent     int `json:"sent"`      // requests started
	Applied  int `json:"applied"`   // responses written back to the ledger
	Failed   int `json:"failed"`    // requests that returned an error
	Dropped  int `json:"dropped"`   // delta events ignored while Applying
	InFlight int `json:"in_flight"` // queued or outstanding
}

// Bridge is the sync state machine between a Ledger and a Remote.
type Bridge struct {
	ledger *ledger.Ledger
	loop   *timeline.Loop
	remote Remote
	tokens TokenSource

	newID func() string
	spawn func(func())

	ctx    context.Context
	cancel context.CancelFunc
	unsub  func()

	// Loop-owned.
	state State

	mu     sync.Mutex
	stats  Stats
	queue  []call
	active bool          // a call is outstanding
	idle   chan struct{} // closed while nothing is in flight
}

type call struct {
	op string
	fn func(context.Context) (api.User, error)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRequestIDs replaces the modify request id generator (UUIDv7 by default).
func WithRequestIDs(fn func() string) Option {
	return func(b *Bridge) { b.newID = fn }
}

// WithSpawn replaces how remote calls are started. The default runs each
// call on a new goroutine; tests pass func(f func()) { f() } so calls
// complete before the triggering action returns. Responses are always
// posted to the loop either way.
func WithSpawn(fn func(func())) Option {
	return func(b *Bridge) { b.spawn = fn }
}

// New creates a bridge. Call Start to begin observing the ledger.
func New(l *ledger.Ledger, loop *timeline.Loop, r Remote, tokens TokenSource, opts ...Option) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	b := &Bridge{
		ledger: l,
		loop:   loop,
		remote: r,
		tokens: tokens,
		newID:  newRequestID,
		spawn:  func(f func()) { go f() },
		ctx:    ctx,
		cancel: cancel,
		idle:   idle,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start subscribes to the ledger. Must run on the loop.
func (b *Bridge) Start() {
	if b.unsub != nil {
		return
	}
	b.unsub = b.ledger.Subscribe(b.handle)
}

// Close unsubscribes and cancels outstanding requests. Cancelled
// requests still post their (failed) result so Wait returns.
func (b *Bridge) Close() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
	b.cancel()
}

// State returns the current state. Must run on the loop.
func (b *Bridge) State() State { return b.state }

// Stats returns a snapshot of the counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Wait blocks until no request is in flight or ctx is done. Must not be
// called from the loop, which has to keep running to deliver responses.
func (b *Bridge) Wait(ctx context.Context) error {
	b.mu.Lock()
	ch := b.idle
	b.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull fetches the user's totals and applies them through the same path
// as a modify response. Returns false when there is no session. Must run
// on the loop.
func (b *Bridge) Pull() bool {
	token, ok := b.tokens.Token()
	if !ok {
		return false
	}
	b.send("pull", func(ctx context.Context) (api.User, error) {
		return b.remote.User(ctx, token)
	})
	return true
}

func (b *Bridge) handle(ev ledger.Event) {
	var req api.ModifyRequest
	switch e := ev.(type) {
	case ledger.XPChanged:
		req.XPDelta = e.Delta
	case ledger.CoinsChanged:
		req.CoinsDelta = e.Delta
	default:
		return
	}

	if b.state == Applying {
		b.mu.Lock()
		b.stats.Dropped++
		b.mu.Unlock()
		slog.Debug("bridge ignoring event while applying", "event", ev.Name())
		return
	}
	if req.XPDelta == 0 && req.CoinsDelta == 0 {
		return
	}
	token, ok := b.tokens.Token()
	if !ok {
		slog.Debug("bridge has no session, keeping change local", "event", ev.Name())
		return
	}

	req.RequestID = b.newID()
	slog.Debug("bridge sending delta",
		"event", ev.Name(),
		"xp_delta", req.XPDelta,
		"coins_delta", req.CoinsDelta,
		"request_id", req.RequestID,
	)
	b.send("modify", func(ctx context.Context) (api.User, error) {
		return b.remote.Modify(ctx, token, req)
	})
}

func (b *Bridge) send(op string, fn func(context.Context) (api.User, error)) {
	b.mu.Lock()
	if b.stats.InFlight == 0 {
		b.idle = make(chan struct{})
	}
	b.stats.InFlight++
	b.queue = append(b.queue, call{op: op, fn: fn})
	start := !b.active
	b.mu.Unlock()

	b.state = Syncing
	if start {
		b.dispatchNext()
	}
}

// dispatchNext starts the oldest queued call, if any. One call is
// outstanding at a time so responses arrive in request order and the last
// one applied reflects every earlier delta.
func (b *Bridge) dispatchNext() {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.active = false
		b.mu.Unlock()
		return
	}
	c := b.queue[0]
	b.queue = b.queue[1:]
	b.active = true
	b.stats.Sent++
	b.mu.Unlock()

	b.spawn(func() {
		user, err := c.fn(b.ctx)
		if !b.loop.Post(func() { b.complete(c.op, user, err) }) {
			slog.Warn("bridge response discarded: timeline stopped", "op", c.op)
			b.abandon()
		}
	})
}

func (b *Bridge) complete(op string, user api.User, err error) {
	defer func() {
		if b.release(err != nil) > 0 {
			b.state = Syncing
		} else {
			b.state = Idle
		}
		b.dispatchNext()
	}()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Debug("bridge request cancelled", "op", op)
		} else {
			slog.Warn("sync failed, keeping local state", "op", op, "error", err)
		}
		return
	}

	b.state = Applying
	b.ledger.ApplyRemote(ledger.Totals{XP: user.XP, Coins: user.Coins, Level: user.Level})

	b.mu.Lock()
	b.stats.Applied++
	b.mu.Unlock()
	slog.Debug("bridge applied server totals",
		"op", op,
		"xp", user.XP,
		"coins", user.Coins,
		"level", user.Level,
	)
}

// release returns the remaining in-flight count.
func (b *Bridge) release(failed bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failed {
		b.stats.Failed++
	}
	b.stats.InFlight--
	if b.stats.InFlight == 0 {
		close(b.idle)
	}
	return b.stats.InFlight
}

// abandon fails the active call and everything queued behind it. Used
// when the loop can no longer deliver responses.
func (b *Bridge) abandon() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Failed += b.stats.InFlight
	b.stats.InFlight = 0
	b.queue = nil
	b.active = false
	close(b.idle)
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/kv"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/reward"
	"github.com/roach88/bebetter/internal/timeline"
)

// fakeRemote emulates the server: it applies deltas to its own totals and
// answers with the absolute result.
type fakeRemote struct {
	mu       sync.Mutex
	xp       int
	coins    int
	requests []api.ModifyRequest
	pulls    int
	err      error
	override *api.User
	block    chan struct{}
}

func (f *fakeRemote) Modify(ctx context.Context, token string, req api.ModifyRequest) (api.User, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return api.User{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return api.User{}, f.err
	}
	if f.override != nil {
		return *f.override, nil
	}
	f.xp += req.XPDelta
	f.coins = max(0, f.coins+req.CoinsDelta)
	return api.User{XP: f.xp, Coins: f.coins, Level: reward.LevelForXP(f.xp)}, nil
}

func (f *fakeRemote) User(ctx context.Context, token string) (api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	if f.err != nil {
		return api.User{}, f.err
	}
	if f.override != nil {
		return *f.override, nil
	}
	return api.User{XP: f.xp, Coins: f.coins, Level: reward.LevelForXP(f.xp)}, nil
}

func (f *fakeRemote) sent() []api.ModifyRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.ModifyRequest(nil), f.requests...)
}

func signedIn() TokenSource {
	return TokenFunc(func() (string, bool) { return "tok", true })
}

func signedOut() TokenSource {
	return TokenFunc(func() (string, bool) { return "", false })
}

func sequentialIDs() Option {
	n := 0
	return WithRequestIDs(func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	})
}

// newSyncBridge builds a bridge whose remote calls complete inline. The
// test goroutine acts as the loop and drains responses with RunPending.
func newSyncBridge(t *testing.T, start ledger.State, r *fakeRemote, tokens TokenSource) (*ledger.Ledger, *timeline.Loop, *Bridge) {
	t.Helper()
	l := ledger.New(kv.NewMemory(), start)
	loop := timeline.New()
	b := New(l, loop, r, tokens, sequentialIDs(), WithSpawn(func(f func()) { f() }))
	b.Start()
	t.Cleanup(b.Close)
	return l, loop, b
}

func TestBridge_OneRequestPerChange(t *testing.T) {
	r := &fakeRemote{}
	l, loop, b := newSyncBridge(t, ledger.State{}, r, signedIn())

	l.AddXP(10)
	require.Len(t, r.sent(), 1)
	assert.Equal(t, Syncing, b.State())

	loop.RunPending()

	// The overwrite re-emits XPChanged and CoinsChanged; neither is sent.
	assert.Len(t, r.sent(), 1)
	assert.Equal(t, 10, l.XP())
	assert.Equal(t, Idle, b.State())

	stats := b.Stats()
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 0, stats.InFlight)
}

func TestBridge_DeltaSentServerWins(t *testing.T) {
	r := &fakeRemote{override: &api.User{XP: 60, Coins: 50, Level: 1}}
	l, loop, _ := newSyncBridge(t, ledger.State{XP: 40, Coins: 50}, r, signedIn())

	l.AddXP(10)
	require.Equal(t, 50, l.XP())

	sent := r.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 10, sent[0].XPDelta)
	assert.Zero(t, sent[0].CoinsDelta)
	assert.Equal(t, "req-1", sent[0].RequestID)

	loop.RunPending()
	assert.Equal(t, 60, l.XP())
	assert.Equal(t, 1, l.Level())
}

func TestBridge_ToggleSendsOneFieldPerEvent(t *testing.T) {
	r := &fakeRemote{}
	l, loop, b := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	l.ToggleTask("task-exercise", reward.Reward{XP: 20, Coins: 10})

	// The coins request waits behind the xp request.
	require.Len(t, r.sent(), 1)
	assert.Equal(t, 2, b.Stats().InFlight)

	assert.Equal(t, 2, loop.RunPending())

	sent := r.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, api.ModifyRequest{XPDelta: 20, RequestID: "req-1"}, sent[0])
	assert.Equal(t, api.ModifyRequest{CoinsDelta: 10, RequestID: "req-2"}, sent[1])

	// Server started at zero coins; its totals replace the local 60.
	assert.Equal(t, 20, l.XP())
	assert.Equal(t, 10, l.Coins())
	assert.Equal(t, Idle, b.State())
	assert.Zero(t, b.Stats().InFlight)
}

func TestBridge_FailureDoesNotBlockQueue(t *testing.T) {
	r := &fakeRemote{err: errors.New("boom")}
	l, loop, b := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	l.AddXP(5)
	l.AddXP(7)
	loop.RunPending()

	assert.Len(t, r.sent(), 2)
	stats := b.Stats()
	assert.Equal(t, 2, stats.Sent)
	assert.Equal(t, 2, stats.Failed)
	assert.Zero(t, stats.InFlight)
	assert.Equal(t, 12, l.XP())
}

func TestBridge_NoSessionStaysLocal(t *testing.T) {
	r := &fakeRemote{}
	l, loop, b := newSyncBridge(t, ledger.DefaultState(), r, signedOut())

	l.AddXP(10)
	l.AddCoins(5)
	assert.True(t, l.SpendCoins(3))

	assert.Empty(t, r.sent())
	assert.Zero(t, loop.RunPending())
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, 10, l.XP())
	assert.Equal(t, 52, l.Coins())
	assert.False(t, b.Pull())
}

func TestBridge_FailureKeepsLocalState(t *testing.T) {
	r := &fakeRemote{err: errors.New("connection refused")}
	l, loop, b := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	l.AddXP(10)
	loop.RunPending()

	assert.Equal(t, 10, l.XP())
	assert.Equal(t, ledger.DefaultCoins, l.Coins())
	assert.Equal(t, Idle, b.State())
	stats := b.Stats()
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Applied)
}

func TestBridge_IgnoresZeroDelta(t *testing.T) {
	r := &fakeRemote{}
	l, _, b := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	// Idle overwrite from elsewhere (e.g. a direct pull) emits Delta 0.
	l.ApplyRemote(ledger.Totals{XP: 5, Coins: 5})

	assert.Empty(t, r.sent())
	assert.Zero(t, b.Stats().Dropped)
}

func TestBridge_NegativeCoinsDelta(t *testing.T) {
	r := &fakeRemote{coins: 50}
	l, loop, _ := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	require.True(t, l.BuyItem("potion", 30))
	sent := r.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, -30, sent[0].CoinsDelta)

	loop.RunPending()
	assert.Equal(t, 20, l.Coins())
}

func TestBridge_PullAppliesServerTotals(t *testing.T) {
	r := &fakeRemote{xp: 250, coins: 40}
	l, loop, b := newSyncBridge(t, ledger.DefaultState(), r, signedIn())

	require.True(t, b.Pull())
	loop.RunPending()

	assert.Equal(t, 250, l.XP())
	assert.Equal(t, 40, l.Coins())
	assert.Equal(t, 3, l.Level())
	assert.Empty(t, r.sent())
	assert.Equal(t, 2, b.Stats().Dropped)
}

func TestBridge_WaitWithRunningLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeRemote{block: make(chan struct{})}
	l := ledger.New(kv.NewMemory(), ledger.DefaultState())
	loop := timeline.New()
	go func() { _ = loop.Run(ctx) }()

	b := New(l, loop, r, signedIn())
	require.NoError(t, loop.Do(ctx, b.Start))
	require.NoError(t, loop.Do(ctx, func() { l.AddXP(10) }))

	short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, b.Wait(short), context.DeadlineExceeded)

	close(r.block)
	waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
	defer cancelWait()
	require.NoError(t, b.Wait(waitCtx))

	var xp int
	var state State
	require.NoError(t, loop.Do(ctx, func() {
		xp = l.XP()
		state = b.State()
	}))
	assert.Equal(t, 10, xp)
	assert.Equal(t, Idle, state)
}

func TestBridge_CloseCancelsInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &fakeRemote{block: make(chan struct{})}
	l := ledger.New(kv.NewMemory(), ledger.DefaultState())
	loop := timeline.New()
	go func() { _ = loop.Run(ctx) }()

	b := New(l, loop, r, signedIn())
	require.NoError(t, loop.Do(ctx, b.Start))
	require.NoError(t, loop.Do(ctx, func() { l.AddXP(10) }))
	require.NoError(t, loop.Do(ctx, b.Close))

	waitCtx, cancelWait := context.WithTimeout(ctx, 2*time.Second)
	defer cancelWait()
	require.NoError(t, b.Wait(waitCtx))
	assert.Equal(t, 1, b.Stats().Failed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "syncing", Syncing.String())
	assert.Equal(t, "applying", Applying.String())
	assert.Equal(t, "unknown", State(9).String())
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/bridge"
	"github.com/roach88/bebetter/internal/config"
	"github.com/roach88/bebetter/internal/kv"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/remote"
	"github.com/roach88/bebetter/internal/reward"
	"github.com/roach88/bebetter/internal/timeline"
)

// TokenKey is the storage key of the session token.
const TokenKey = "be_better_token"

var (
	// ErrNotSignedIn is returned by operations that need a session.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrUnknownTask means the id is not in the task catalog.
	ErrUnknownTask = errors.New("unknown task")

	// ErrSyncFailed means at least one sync request failed; local state
	// was kept.
	ErrSyncFailed = errors.New("sync failed, local state kept")
)

// Remote is the full remote client surface the app uses.
type Remote interface {
	bridge.Remote
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
}

// App is a running client.
type App struct {
	store   kv.Store
	ledger  *ledger.Ledger
	loop    *timeline.Loop
	remote  Remote
	bridge  *bridge.Bridge
	catalog *reward.Catalog

	cancel context.CancelFunc
	done   chan error
}

type options struct {
	store      kv.Store
	remote     Remote
	catalog    *reward.Catalog
	bridgeOpts []bridge.Option
}

// Option configures Open.
type Option func(*options)

// WithStore uses s instead of opening the configured backend. The App
// still closes it.
func WithStore(s kv.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRemote replaces the HTTP client.
func WithRemote(r Remote) Option {
	return func(o *options) { o.remote = r }
}

// WithCatalog replaces the built-in task catalog.
func WithCatalog(c *reward.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithBridgeOptions passes options through to the sync bridge.
func WithBridgeOptions(opts ...bridge.Option) Option {
	return func(o *options) { o.bridgeOpts = append(o.bridgeOpts, opts...) }
}

// Open loads the ledger from storage and starts the timeline.
func Open(cfg config.ClientConfig, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.store == nil {
		st, err := kv.Open(cfg.Storage, cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open client storage: %w", err)
		}
		o.store = st
	}
	if o.remote == nil {
		o.remote = remote.NewClient(cfg.APIBase,
			remote.WithTimeout(cfg.RequestTimeout),
			remote.WithMaxRetries(cfg.MaxRetries),
		)
	}
	if o.catalog == nil {
		o.catalog = reward.DefaultCatalog()
	}

	a := &App{
		store:   o.store,
		ledger:  ledger.Load(o.store),
		loop:    timeline.New(),
		remote:  o.remote,
		catalog: o.catalog,
		done:    make(chan error, 1),
	}
	a.bridge = bridge.New(a.ledger, a.loop, a.remote, bridge.TokenFunc(a.token), o.bridgeOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go func() { a.done <- a.loop.Run(ctx) }()

	if err := a.loop.Do(ctx, a.bridge.Start); err != nil {
		a.Close()
		return nil, fmt.Errorf("start bridge: %w", err)
	}
	return a, nil
}

// Close stops the bridge and the timeline and closes storage. Requests
// still in flight are cancelled; call Wait first to let them land.
func (a *App) Close() error {
	_ = a.loop.Do(context.Background(), a.bridge.Close)
	a.loop.Stop()

	select {
	case <-a.done:
	case <-time.After(5 * time.Second):
		slog.Warn("timeline did not stop in time")
		a.cancel()
	}
	a.cancel()

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close client storage: %w", err)
	}
	return nil
}

// Catalog returns the task catalog.
func (a *App) Catalog() *reward.Catalog {
	return a.catalog
}

// Subscribe registers h for ledger events. h runs on the timeline.
func (a *App) Subscribe(ctx context.Context, h ledger.Handler) (unsubscribe func(), err error) {
	err = a.loop.Do(ctx, func() { unsubscribe = a.ledger.Subscribe(h) })
	return unsubscribe, err
}

// Wait blocks until every in-flight sync request has been applied or failed.
func (a *App) Wait(ctx context.Context) error {
	return a.bridge.Wait(ctx)
}

// SignedIn reports whether a session token is stored.
func (a *App) SignedIn() bool {
	_, ok := a.token()
	return ok
}

func (a *App) token() (string, bool) {
	token, ok, err := a.store.Get(TokenKey)
	if err != nil {
		slog.Warn("read session token failed", "error", err)
		return "", false
	}
	return token, ok && token != ""
}

// TaskStatus is a catalog task and its pool state.
type TaskStatus struct {
	reward.Task
	InPool    bool `json:"in_pool"`
	Completed bool `json:"completed"`
}

// Status is a snapshot for display.
type Status struct {
	XP            int            `json:"xp"`
	Coins         int            `json:"coins"`
	Level         int            `json:"level"`
	XPToNextLevel int            `json:"xp_to_next_level"`
	ActiveTasks   int            `json:"active_tasks"`
	Tasks         []TaskStatus   `json:"tasks"`
	ItemsOwned    map[string]int `json:"items_owned"`
	SignedIn      bool           `json:"signed_in"`
	Sync          bridge.Stats   `json:"sync"`
}

// Status returns the current ledger state joined with the catalog.
func (a *App) Status(ctx context.Context) (Status, error) {
	var st Status
	err := a.loop.Do(ctx, func() {
		snap := a.ledger.Snapshot()
		st = Status{
			XP:            snap.XP,
			Coins:         snap.Coins,
			Level:         snap.Level,
			XPToNextLevel: a.ledger.XPToNextLevel(),
			ActiveTasks:   a.ledger.ActiveTasks(),
			ItemsOwned:    snap.ItemsOwned,
			Tasks:         a.taskStatuses(snap.Tasks),
		}
	})
	if err != nil {
		return Status{}, err
	}
	st.SignedIn = a.SignedIn()
	st.Sync = a.bridge.Stats()
	return st, nil
}

// taskStatuses lists catalog tasks first (catalog order), then any pool
// ids the catalog does not know, sorted.
func (a *App) taskStatuses(pool map[string]bool) []TaskStatus {
	out := make([]TaskStatus, 0, len(pool))
	seen := make(map[string]bool, len(pool))
	for _, t := range a.catalog.Tasks() {
		completed, in := pool[t.ID]
		out = append(out, TaskStatus{Task: t, InPool: in, Completed: completed})
		seen[t.ID] = true
	}
	var extra []string
	for id := range pool {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		out = append(out, TaskStatus{
			Task:      reward.Task{ID: id, Title: id, Reward: reward.DefaultReward},
			InPool:    true,
			Completed: pool[id],
		})
	}
	return out
}

// AddTask puts a catalog task into the pool.
func (a *App) AddTask(ctx context.Context, id string) error {
	if _, ok := a.catalog.Lookup(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	var addErr error
	if err := a.loop.Do(ctx, func() { addErr = a.ledger.AddTask(id) }); err != nil {
		return err
	}
	return addErr
}

// Toggle flips a task and reports its new completion state. Completing
// grants the catalog reward for id.
func (a *App) Toggle(ctx context.Context, id string) (completed bool, err error) {
	r := a.catalog.RewardFor(id)
	err = a.loop.Do(ctx, func() {
		a.ledger.ToggleTask(id, r)
		completed = a.ledger.Snapshot().Tasks[id]
	})
	return completed, err
}

// Buy purchases one itemID for price coins.
func (a *App) Buy(ctx context.Context, itemID string, price int) (owned int, err error) {
	if price < 0 {
		return 0, fmt.Errorf("invalid price %d", price)
	}
	var ok bool
	err = a.loop.Do(ctx, func() {
		ok = a.ledger.BuyItem(itemID, price)
		owned = a.ledger.Snapshot().ItemsOwned[itemID]
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return owned, ledger.ErrInsufficientFunds
	}
	return owned, nil
}

// Register creates a remote account. It does not sign in.
func (a *App) Register(ctx context.Context, username, email, password string) (string, error) {
	return a.remote.Register(ctx, api.RegisterRequest{Username: username, Email: email, Password: password})
}

// Login stores a fresh session token and pulls the server totals, which
// overwrite the local xp, coins and level.
func (a *App) Login(ctx context.Context, username, password string) error {
	token, err := a.remote.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.store.Set(TokenKey, token); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	slog.Info("signed in", "username", username)
	return a.Sync(ctx)
}

// Logout revokes the session remotely (best effort) and forgets it locally.
func (a *App) Logout(ctx context.Context) error {
	token, ok := a.token()
	if !ok {
		return ErrNotSignedIn
	}
	if err := a.remote.Logout(ctx, token); err != nil && !errors.Is(err, remote.ErrUnauthorized) {
		slog.Warn("remote logout failed, forgetting token anyway", "error", err)
	}
	if err := a.store.Delete(TokenKey); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

// Sync pulls the server totals and waits for every outstanding request.
// Returns ErrSyncFailed if any request failed meanwhile.
func (a *App) Sync(ctx context.Context) error {
	failedBefore := a.bridge.Stats().Failed
	var pulled bool
	if err := a.loop.Do(ctx, func() { pulled = a.bridge.Pull() }); err != nil {
		return err
	}
	if !pulled {
		return ErrNotSignedIn
	}
	if err := a.bridge.Wait(ctx); err != nil {
		return err
	}
	if a.bridge.Stats().Failed > failedBefore {
		return ErrSyncFailed
	}
	return nil
}

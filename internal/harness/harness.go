package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/bridge"
	"github.com/roach88/bebetter/internal/kv"
	"github.com/roach88/bebetter/internal/ledger"
	"github.com/roach88/bebetter/internal/reward"
	"github.com/roach88/bebetter/internal/timeline"
)

// sessionToken is the token the scripted remote accepts.
const sessionToken = "harness-session"

var errRemoteUnavailable = errors.New("remote unavailable")

// Harness executes one scenario against a fresh ledger.
type Harness struct {
	ledger  *ledger.Ledger
	loop    *timeline.Loop
	bridge  *bridge.Bridge
	remote  *scriptedRemote
	catalog *reward.Catalog
	result  *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against an in-memory store with its own timeline.
// Remote calls complete inline; pending responses are drained after every
// step, so traces are reproducible.
//
// Execution flow:
// 1. Build the ledger from scenario.Initial
// 2. Subscribe the trace recorder, then the sync bridge
// 3. Execute steps, checking each step's expect clause
// 4. Evaluate assertions against the trace and final state
func Run(scenario *Scenario) (*Result, error) {
	start := ledger.DefaultState()
	if scenario.Initial != nil {
		start.XP = scenario.Initial.XP
		start.Coins = scenario.Initial.Coins
	}

	result := NewResult()
	h := &Harness{
		ledger:  ledger.New(kv.NewMemory(), start),
		loop:    timeline.New(),
		remote:  newScriptedRemote(result, scenario.Remote),
		catalog: reward.DefaultCatalog(),
		result:  result,
	}

	// The recorder subscribes first so each event is traced before the
	// request it triggers.
	h.ledger.Subscribe(func(ev ledger.Event) {
		result.add(EntryEvent, ev.Name(), eventFields(ev))
	})

	session := scenario.Session
	nextID := 0
	h.bridge = bridge.New(h.ledger, h.loop, h.remote,
		bridge.TokenFunc(func() (string, bool) { return sessionToken, session }),
		bridge.WithSpawn(func(f func()) { f() }),
		bridge.WithRequestIDs(func() string {
			nextID++
			return fmt.Sprintf("req-%d", nextID)
		}),
	)
	h.bridge.Start()
	defer h.bridge.Close()

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		h.loop.RunPending()
	}

	result.State = flattenState(h.ledger.Snapshot())
	result.Requests = h.remote.requests

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one action and checks its expect clause.
func (h *Harness) executeStep(index int, step Step) error {
	outcome := map[string]any{}

	switch step.Action {
	case ActionToggle:
		id, err := stringArg(step.Args, "id")
		if err != nil {
			return err
		}
		r := h.catalog.RewardFor(id)
		if _, ok := step.Args["xp"]; ok {
			if r.XP, err = intArg(step.Args, "xp"); err != nil {
				return err
			}
		}
		if _, ok := step.Args["coins"]; ok {
			if r.Coins, err = intArg(step.Args, "coins"); err != nil {
				return err
			}
		}
		h.ledger.ToggleTask(id, r)
		outcome["completed"] = h.ledger.Snapshot().Tasks[id]

	case ActionBuy:
		item, err := stringArg(step.Args, "item")
		if err != nil {
			return err
		}
		price, err := intArg(step.Args, "price")
		if err != nil {
			return err
		}
		outcome["ok"] = h.ledger.BuyItem(item, price)

	case ActionAddXP:
		amount, err := intArg(step.Args, "amount")
		if err != nil {
			return err
		}
		h.ledger.AddXP(amount)

	case ActionAddCoins:
		amount, err := intArg(step.Args, "amount")
		if err != nil {
			return err
		}
		h.ledger.AddCoins(amount)

	case ActionSpend:
		amount, err := intArg(step.Args, "amount")
		if err != nil {
			return err
		}
		outcome["ok"] = h.ledger.SpendCoins(amount)

	case ActionAddTask:
		id, err := stringArg(step.Args, "id")
		if err != nil {
			return err
		}
		addErr := h.ledger.AddTask(id)
		outcome["ok"] = addErr == nil
		outcome["error"] = taskErrorCode(addErr)

	case ActionPull:
		h.bridge.Pull()

	case ActionFailRemote:
		h.remote.fail = true

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	keys := make([]string, 0, len(step.Expect))
	for k := range step.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		want := step.Expect[key]
		got, ok := outcome[key]
		if !ok {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: no %q outcome to check", index, step.Action, key))
			continue
		}
		if !valuesEqual(want, got) {
			h.result.AddError(fmt.Sprintf("steps[%d] %s: expected %s=%v, got %v", index, step.Action, key, want, got))
		}
	}
	return nil
}

func taskErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ledger.ErrTaskLimit):
		return "limit"
	case errors.Is(err, ledger.ErrTaskCompleted):
		return "completed"
	case errors.Is(err, ledger.ErrTaskExists):
		return "exists"
	default:
		return err.Error()
	}
}

func eventFields(ev ledger.Event) map[string]any {
	switch e := ev.(type) {
	case ledger.XPChanged:
		return map[string]any{"xp": e.XP, "delta": e.Delta}
	case ledger.CoinsChanged:
		return map[string]any{"coins": e.Coins, "delta": e.Delta}
	case ledger.TaskToggled:
		return map[string]any{"id": e.ID, "completed": e.Completed}
	case ledger.ItemBought:
		return map[string]any{"itemId": e.ItemID, "count": e.Count}
	case ledger.TaskAdded:
		return map[string]any{"id": e.ID}
	default:
		return nil
	}
}

// flattenState turns ledger state into assertion keys: xp, coins, level,
// tasks.<id> and items.<id>.
func flattenState(s ledger.State) map[string]any {
	out := map[string]any{
		"xp":    s.XP,
		"coins": s.Coins,
		"level": s.Level,
	}
	for id, done := range s.Tasks {
		out["tasks."+id] = done
	}
	for id, n := range s.ItemsOwned {
		out["items."+id] = n
	}
	return out
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("arg %q: expected string, got %T", key, v)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing arg %q", key)
	}
	n, ok := asInt(v)
	if !ok {
		return 0, fmt.Errorf("arg %q: expected integer, got %v", key, v)
	}
	return int(n), nil
}

// asInt converts YAML-parsed numbers to int64. Non-integral floats fail.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

// scriptedRemote emulates the remote ledger in process: it applies deltas
// to its own totals, floors at zero, derives level the way the server
// store does, and records every exchange in the trace.
type scriptedRemote struct {
	result   *Result
	xp       int
	coins    int
	fail     bool
	requests int
}

func newScriptedRemote(result *Result, start *Totals) *scriptedRemote {
	r := &scriptedRemote{result: result}
	if start != nil {
		r.xp = start.XP
		r.coins = start.Coins
	}
	return r
}

func (r *scriptedRemote) Modify(_ context.Context, token string, req api.ModifyRequest) (api.User, error) {
	r.requests++
	r.result.add(EntryRequest, "modify", map[string]any{
		"xpDelta":    req.XPDelta,
		"coinsDelta": req.CoinsDelta,
		"requestId":  req.RequestID,
	})
	if err := r.check(token); err != nil {
		r.result.add(EntryResponse, "modify", map[string]any{"error": err.Error()})
		return api.User{}, err
	}
	r.xp = max(0, r.xp+req.XPDelta)
	r.coins = max(0, r.coins+req.CoinsDelta)
	return r.respond("modify"), nil
}

func (r *scriptedRemote) User(_ context.Context, token string) (api.User, error) {
	r.requests++
	r.result.add(EntryRequest, "pull", nil)
	if err := r.check(token); err != nil {
		r.result.add(EntryResponse, "pull", map[string]any{"error": err.Error()})
		return api.User{}, err
	}
	return r.respond("pull"), nil
}

func (r *scriptedRemote) check(token string) error {
	if r.fail {
		return errRemoteUnavailable
	}
	if token != sessionToken {
		return fmt.Errorf("unauthorized")
	}
	return nil
}

func (r *scriptedRemote) respond(name string) api.User {
	u := api.User{XP: r.xp, Coins: r.coins, Level: reward.LevelForXP(r.xp)}
	r.result.add(EntryResponse, name, map[string]any{
		"xp":    u.XP,
		"coins": u.Coins,
		"level": u.Level,
	})
	return u
}

package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/bebetter/internal/kv"
	"github.com/roach88/bebetter/internal/reward"
)

// MaxActiveTasks caps the pool (pending plus completed tasks).
const MaxActiveTasks = 5

// Totals are server-confirmed absolute values.
type Totals struct {
	XP    int
	Coins int
	Level int
}

// Ledger is the local record for a single user installation.
type Ledger struct {
	store  kv.Store
	state  State
	subs   []subscription
	nextID int
}

// Load reads the persisted state from store, falling back to defaults.
func Load(store kv.Store) *Ledger {
	return &Ledger{store: store, state: loadState(store)}
}

// New creates a ledger with an explicit starting state. The state is not
// persisted until the first mutation.
func New(store kv.Store, s State) *Ledger {
	s = s.Clone()
	s.normalize()
	return &Ledger{store: store, state: s}
}

// Subscribe registers h for every subsequent event and returns a function
// that removes it.
func (l *Ledger) Subscribe(h Handler) (unsubscribe func()) {
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, subscription{id: id, fn: h})
	return func() {
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns a deep copy of the current state.
func (l *Ledger) Snapshot() State {
	return l.state.Clone()
}

// XP returns the current xp.
func (l *Ledger) XP() int { return l.state.XP }

// Coins returns the current coin balance.
func (l *Ledger) Coins() int { return l.state.Coins }

// Level returns the cached level.
func (l *Ledger) Level() int { return l.state.Level }

// XPToNextLevel derives the remaining xp from the current xp.
func (l *Ledger) XPToNextLevel() int { return reward.XPToNextLevel(l.state.XP) }

// Save serializes the full state to the store. A failure is logged and
// the in-memory state stays authoritative for this session.
func (l *Ledger) Save() {
	raw, err := json.Marshal(l.state)
	if err != nil {
		slog.Warn("could not save state", "error", fmt.Errorf("encode state: %w", err))
		return
	}
	if err := l.store.Set(StateKey, string(raw)); err != nil {
		slog.Warn("could not save state", "error", err)
	}
}

// AddXP increases xp by amount. Negative amounts are ignored.
func (l *Ledger) AddXP(amount int) {
	if amount < 0 {
		slog.Warn("ignoring negative xp", "amount", amount)
		return
	}
	l.state.XP += amount
	l.state.Level = reward.LevelForXP(l.state.XP)
	l.Save()
	l.emit(XPChanged{XP: l.state.XP, Delta: amount})
}

// AddCoins increases coins by amount. Negative amounts are ignored; use
// SpendCoins to debit.
func (l *Ledger) AddCoins(amount int) {
	if amount < 0 {
		slog.Warn("ignoring negative coins", "amount", amount)
		return
	}
	l.state.Coins += amount
	l.Save()
	l.emit(CoinsChanged{Coins: l.state.Coins, Delta: amount})
}

// SpendCoins debits amount. Returns false without mutating or emitting
// when the balance is too low.
func (l *Ledger) SpendCoins(amount int) bool {
	if amount < 0 || l.state.Coins < amount {
		return false
	}
	l.state.Coins -= amount
	l.Save()
	l.emit(CoinsChanged{Coins: l.state.Coins, Delta: -amount})
	return true
}

// ToggleTask flips a task between pending and completed. Completing grants
// r (or reward.DefaultReward when r is zero) through AddXP and AddCoins.
// Reverting to pending leaves xp and coins untouched.
func (l *Ledger) ToggleTask(id string, r reward.Reward) {
	if l.state.Tasks[id] {
		l.state.Tasks[id] = false
	} else {
		r = r.OrDefault()
		l.state.Tasks[id] = true
		l.AddXP(r.XP)
		l.AddCoins(r.Coins)
	}
	l.Save()
	l.emit(TaskToggled{ID: id, Completed: l.state.Tasks[id]})
}

// BuyItem spends price and increments the owned count of itemID.
// Returns false with no side effect when coins are insufficient.
func (l *Ledger) BuyItem(itemID string, price int) bool {
	if !l.SpendCoins(price) {
		return false
	}
	l.state.ItemsOwned[itemID]++
	l.Save()
	l.emit(ItemBought{ItemID: itemID, Count: l.state.ItemsOwned[itemID]})
	return true
}

// AddTask places id in the pool as pending.
func (l *Ledger) AddTask(id string) error {
	completed, present := l.state.Tasks[id]
	switch {
	case present && completed:
		return ErrTaskCompleted
	case present:
		return ErrTaskExists
	case l.ActiveTasks() >= MaxActiveTasks:
		return ErrTaskLimit
	}
	l.state.Tasks[id] = false
	l.Save()
	l.emit(TaskAdded{ID: id})
	return nil
}

// ActiveTasks counts tasks in the pool, pending or completed.
func (l *Ledger) ActiveTasks() int {
	return len(l.state.Tasks)
}

// ApplyRemote overwrites xp, coins and level with server totals, persists,
// and re-emits XPChanged and CoinsChanged with Delta 0 so views refresh.
// Server values win over any local drift; nothing is merged.
func (l *Ledger) ApplyRemote(t Totals) {
	if t.XP < 0 {
		t.XP = 0
	}
	if t.Coins < 0 {
		t.Coins = 0
	}
	if t.Level <= 0 {
		t.Level = reward.LevelForXP(t.XP)
	}
	l.state.XP = t.XP
	l.state.Coins = t.Coins
	l.state.Level = t.Level
	l.Save()
	l.emit(XPChanged{XP: l.state.XP, Delta: 0})
	l.emit(CoinsChanged{Coins: l.state.Coins, Delta: 0})
}

func (l *Ledger) emit(ev Event) {
	// Copy so handlers may (un)subscribe while we iterate.
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	for _, s := range subs {
		s.fn(ev)
	}
}

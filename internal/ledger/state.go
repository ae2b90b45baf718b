package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"

	"github.com/roach88/bebetter/internal/kv"
	"github.com/roach88/bebetter/internal/reward"
)

// StateKey is the kv key holding the serialized ledger.
const StateKey = "be_better_state_v1"

// DefaultCoins is the starting balance of a fresh ledger.
const DefaultCoins = 50

// State is the persisted ledger record.
type State struct {
	XP         int             `json:"xp"`
	Coins      int             `json:"coins"`
	Tasks      map[string]bool `json:"tasks"`
	ItemsOwned map[string]int  `json:"itemsOwned"`
	Level      int             `json:"level,omitempty"`
}

// DefaultState returns the first-run state.
func DefaultState() State {
	return State{
		XP:         0,
		Coins:      DefaultCoins,
		Tasks:      map[string]bool{},
		ItemsOwned: map[string]int{},
		Level:      reward.LevelForXP(0),
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	c := s
	c.Tasks = maps.Clone(s.Tasks)
	c.ItemsOwned = maps.Clone(s.ItemsOwned)
	if c.Tasks == nil {
		c.Tasks = map[string]bool{}
	}
	if c.ItemsOwned == nil {
		c.ItemsOwned = map[string]int{}
	}
	return c
}

// normalize repairs fields a hand-edited or older record may lack.
func (s *State) normalize() {
	if s.Tasks == nil {
		s.Tasks = map[string]bool{}
	}
	if s.ItemsOwned == nil {
		s.ItemsOwned = map[string]int{}
	}
	if s.XP < 0 {
		s.XP = 0
	}
	if s.Coins < 0 {
		s.Coins = 0
	}
	if s.Level <= 0 {
		s.Level = reward.LevelForXP(s.XP)
	}
}

// loadState reads the persisted state. Missing or corrupt data yields
// DefaultState; the failure is logged, never returned.
func loadState(store kv.Store) State {
	raw, ok, err := store.Get(StateKey)
	if err != nil {
		slog.Warn("could not load state, using defaults", "error", err)
		return DefaultState()
	}
	if !ok || raw == "" {
		return DefaultState()
	}

	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		slog.Warn("could not load state, using defaults",
			"error", fmt.Errorf("decode %s: %w", StateKey, err),
		)
		return DefaultState()
	}
	s.normalize()
	return s
}

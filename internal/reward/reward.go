// Package reward holds the pure progression rules shared by the client
// ledger and the server store.
//
// Level derivation lives here and nowhere else, so a given xp value maps
// to the same level on both sides of the sync protocol.
package reward

import "sort"

// XPPerLevel is the flat xp width of every level.
const XPPerLevel = 100

// DefaultReward is granted for task ids missing from the catalog.
var DefaultReward = Reward{XP: 10, Coins: 5}

// Reward is the (xp, coins) pair granted when a task is completed.
type Reward struct {
	XP    int `json:"xp" yaml:"xp"`
	Coins int `json:"coins" yaml:"coins"`
}

// IsZero reports whether the reward grants nothing.
func (r Reward) IsZero() bool {
	return r.XP == 0 && r.Coins == 0
}

// OrDefault returns DefaultReward when r is unspecified.
func (r Reward) OrDefault() Reward {
	if r.IsZero() {
		return DefaultReward
	}
	return r
}

// LevelForXP returns floor(xp/100)+1. Negative xp is treated as 0.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// XPToNextLevel returns the xp still needed to reach the next level.
func XPToNextLevel(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return LevelForXP(xp)*XPPerLevel - xp
}

// Task is a catalog entry.
type Task struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Reward Reward `json:"reward" yaml:"reward"`
}

// Catalog is a fixed lookup of task id to task.
type Catalog struct {
	tasks map[string]Task
	order []string
}

// NewCatalog builds a catalog preserving the given order.
// Later duplicates replace earlier entries.
func NewCatalog(tasks ...Task) *Catalog {
	c := &Catalog{tasks: make(map[string]Task, len(tasks))}
	for _, t := range tasks {
		if _, seen := c.tasks[t.ID]; !seen {
			c.order = append(c.order, t.ID)
		}
		c.tasks[t.ID] = t
	}
	return c
}

// DefaultCatalog returns the built-in self-improvement tasks.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Task{ID: "task-exercise", Title: "Exercise 30 minutes", Reward: Reward{XP: 20, Coins: 10}},
		Task{ID: "task-journal", Title: "Write morning journal", Reward: Reward{XP: 15, Coins: 5}},
		Task{ID: "task-sleep", Title: "Go to bed before 23:00", Reward: Reward{XP: 10, Coins: 6}},
		Task{ID: "task-no-phone", Title: "No phone 1 hour", Reward: Reward{XP: 12, Coins: 4}},
		Task{ID: "task-hydrate", Title: "Drink 2L water", Reward: Reward{XP: 8, Coins: 3}},
	)
}

// Lookup returns the task with the given id.
func (c *Catalog) Lookup(id string) (Task, bool) {
	t, ok := c.tasks[id]
	return t, ok
}

// RewardFor returns the catalog reward for id, or DefaultReward.
func (c *Catalog) RewardFor(id string) Reward {
	if t, ok := c.tasks[id]; ok {
		return t.Reward.OrDefault()
	}
	return DefaultReward
}

// Tasks returns the catalog in declaration order.
func (c *Catalog) Tasks() []Task {
	out := make([]Task, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.tasks[id])
	}
	return out
}

// IDs returns the catalog ids sorted lexically.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

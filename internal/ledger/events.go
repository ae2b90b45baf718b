package ledger

// Event names as exposed to subscribers and traces.
const (
	EventXPChanged    = "xpChanged"
	EventCoinsChanged = "coinsChanged"
	EventTaskToggled  = "taskToggled"
	EventItemBought   = "itemBought"
	EventTaskAdded    = "taskAdded"
)

// Event is emitted after every ledger mutation.
type Event interface {
	Name() string
}

// XPChanged carries the new absolute xp and the signed change.
// Delta is 0 when the value was overwritten by the server.
type XPChanged struct {
	XP    int `json:"xp"`
	Delta int `json:"delta"`
}

// CoinsChanged carries the new absolute coins and the signed change.
type CoinsChanged struct {
	Coins int `json:"coins"`
	Delta int `json:"delta"`
}

// TaskToggled reports a task's new completion flag.
type TaskToggled struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// ItemBought reports the owned count after a purchase.
type ItemBought struct {
	ItemID string `json:"itemId"`
	Count  int    `json:"count"`
}

// TaskAdded reports a task entering the pool as pending.
type TaskAdded struct {
	ID string `json:"id"`
}

func (XPChanged) Name() string    { return EventXPChanged }
func (CoinsChanged) Name() string { return EventCoinsChanged }
func (TaskToggled) Name() string  { return EventTaskToggled }
func (ItemBought) Name() string   { return EventItemBought }
func (TaskAdded) Name() string    { return EventTaskAdded }

// Handler receives ledger events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

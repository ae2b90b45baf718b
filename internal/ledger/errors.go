package ledger

import "errors"

var (
	// ErrInsufficientFunds means a spend or purchase exceeded the balance.
	ErrInsufficientFunds = errors.New("not enough coins")

	// ErrTaskLimit means the pool already holds MaxActiveTasks tasks.
	ErrTaskLimit = errors.New("maximum active tasks reached")

	// ErrTaskCompleted means the task is already completed and cannot be re-added.
	ErrTaskCompleted = errors.New("task already completed")

	// ErrTaskExists means the task is already pending in the pool.
	ErrTaskExists = errors.New("task already in pool")
)

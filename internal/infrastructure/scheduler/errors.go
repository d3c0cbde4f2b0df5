package scheduler

import "errors"

var (
	// ErrSweeperNotRunning is returned when trying to submit a sweep to a stopped sweeper
	ErrSweeperNotRunning = errors.New("sweeper is not running")

	// ErrSweepQueueFull is returned when the sweep queue is full
	ErrSweepQueueFull = errors.New("sweep queue is full")

	// ErrInvalidSweepKind is returned for unknown sweep kinds
	ErrInvalidSweepKind = errors.New("invalid sweep kind")
)

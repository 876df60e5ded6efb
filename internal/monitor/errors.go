package monitor

import "errors"

var (
	ErrSchedulerRunning    = errors.New("monitor scheduler is already running")
	ErrSchedulerNotRunning = errors.New("monitor scheduler is not running")
)

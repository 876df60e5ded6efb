package gateway

import "errors"

var (
	ErrServerRunning    = errors.New("gateway server is already running")
	ErrServerNotRunning = errors.New("gateway server is not running")
)

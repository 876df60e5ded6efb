package interfaces

import "errors"

// Shared sentinel errors returned by store and platform implementations.
var (
	ErrNotFound        = errors.New("not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrTenantNotFound  = errors.New("tenant not found")
)

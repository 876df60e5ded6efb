package registry

import "errors"

var (
	ErrInvalidPrefix = errors.New("prefix must be 1-8 characters")
)

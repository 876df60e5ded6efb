package commands

import "errors"

var (
	ErrUnknownCommand      = errors.New("unknown command")
	ErrBadArguments        = errors.New("bad command arguments")
	ErrNotWatched          = errors.New("channel is not watched")
	ErrAlreadyWatched      = errors.New("channel is already watched")
	ErrChannelNotWatchable = errors.New("channel cannot carry a slowmode")
)

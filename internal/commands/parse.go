package commands

import (
	"fmt"
	"strconv"
	"strings"

	"modwatch/pkg/interfaces"
)

// Parse turns a prefix-stripped command line into an executable command.
// The returned error distinguishes unknown verbs from malformed arguments
// so the caller can choose whether to answer at all.
func Parse(env *Env, tenantID, channelID, actorID, line string) (interfaces.Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrUnknownCommand
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	b := base{
		env:       env,
		name:      verb,
		tenantID:  tenantID,
		channelID: channelID,
		actorID:   actorID,
	}

	switch verb {
	case "watch":
		return &watchCommand{base: b}, nil

	case "unwatch":
		return &unwatchCommand{base: b}, nil

	case "unwatch-all":
		return &unwatchAllCommand{base: b}, nil

	case "status":
		return &statusCommand{base: b}, nil

	case "bounds":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: bounds <min> <max>", ErrBadArguments)
		}
		min, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: min must be a number", ErrBadArguments)
		}
		max, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("%w: max must be a number", ErrBadArguments)
		}
		return &boundsCommand{base: b, min: min, max: max}, nil

	case "sensitivity":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: sensitivity <offset>", ErrBadArguments)
		}
		offset, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: offset must be a number", ErrBadArguments)
		}
		return &sensitivityCommand{base: b, offset: offset}, nil

	case "cachesize":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: cachesize <n>", ErrBadArguments)
		}
		size, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%w: size must be a number", ErrBadArguments)
		}
		return &cachesizeCommand{base: b, size: size}, nil

	case "prefix":
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: prefix <prefix>", ErrBadArguments)
		}
		return &prefixCommand{base: b, prefix: args[0]}, nil

	default:
		return nil, ErrUnknownCommand
	}
}

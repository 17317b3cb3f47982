package strategy

import (
	"errors"
	"fmt"
)

// ErrUnknownStrategy reports a strategy name outside the supported set.
var ErrUnknownStrategy = errors.New("strategy: unknown strategy")

// Strategy selects how a write propagates between the cache and the
// store. Reads behave identically for every strategy.
type Strategy string

const (
	CacheAside   Strategy = "cache_aside"
	ReadThrough  Strategy = "read_through"
	WriteThrough Strategy = "write_through"
	WriteAround  Strategy = "write_around"
	WriteBack    Strategy = "write_back"
)

// All lists every supported strategy in a stable order.
func All() []Strategy {
	return []Strategy{CacheAside, ReadThrough, WriteThrough, WriteAround, WriteBack}
}

// Names lists every supported strategy name.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = string(s)
	}
	return names
}

// Parse validates a strategy name at the boundary layer.
func Parse(name string) (Strategy, error) {
	s := Strategy(name)
	switch s {
	case CacheAside, ReadThrough, WriteThrough, WriteAround, WriteBack:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

package feature

import (
	"fmt"
	"time"
)

// Key is the content-addressable identity of one feature computation:
// extractor version, symbol, data-range bounds, and parameters. Two logically
// identical requests always produce identical keys, and keys are totally
// ordered by their canonical string form.
type Key struct {
	Version int
	Symbol  string
	Start   time.Time
	End     time.Time
	Params  Params
}

// NewKey builds a Key for the current extractor version.
func NewKey(symbol string, start, end time.Time, p Params) Key {
	return Key{Version: Version, Symbol: symbol, Start: start.UTC(), End: end.UTC(), Params: p}
}

// String renders the canonical cache-key form.
func (k Key) String() string {
	return fmt.Sprintf("v%d|%s|%d|%d|s%d-l%d-v%d",
		k.Version, k.Symbol, k.Start.UnixMilli(), k.End.UnixMilli(),
		k.Params.ShortWindow, k.Params.LongWindow, k.Params.VolWindow)
}

// Less defines the total order over keys.
func (k Key) Less(other Key) bool { return k.String() < other.String() }

package amm

import "errors"

// ErrLayoutCollapsed is returned by Layout when clamping to [MinTick,
// MaxTick] would leave one of the 7 bands with Lower >= Upper.
var ErrLayoutCollapsed = errors.New("amm: band layout collapsed after clamping to tick bounds")

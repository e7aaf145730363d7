package core

import "errors"

// ErrRevert marks an on-chain revert: slippage, insufficient balance, a
// band collision. Always terminal for the transaction that produced it.
var ErrRevert = errors.New("core: transaction reverted")

// ErrEventMissing marks a transaction that succeeded but whose expected log
// (IncreaseLiquidity, DecreaseLiquidity, Collect, ERC-20 Transfer) is
// absent. Treated as a revert for safety: the caller cannot know the
// actual outcome without the event.
var ErrEventMissing = errors.New("core: expected event missing from receipt")

// ErrValidation marks an invariant violation: an invalid band layout, a
// ledger that failed a contiguity or width check.
var ErrValidation = errors.New("core: validation failed")

// ErrGateSkip is not a failure: a risk or timing gate declined to proceed.
// Returned to let callers distinguish "nothing to do" from "something
// broke" without treating a skip as an error worth counting toward the
// consecutive-error budget.
var ErrGateSkip = errors.New("core: gate skipped rebalance")

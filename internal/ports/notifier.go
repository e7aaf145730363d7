package ports

import "context"

// Notifier delivers best-effort, human-readable messages about engine
// events. Errors are swallowed at the call site: a notification failure
// must never fail a state transition.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

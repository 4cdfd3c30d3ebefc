package deadline

import "context"

// Notifier delivers a newly created alert to the operations channel. Notify
// reports delivery success and never returns an error: delivery is best
// effort and must not block or roll back the alert write.
type Notifier interface {
	Notify(ctx context.Context, a *Alert) bool
}

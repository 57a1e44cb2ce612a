package reminder

import "context"

// Notifier delivers a task reminder to a single recipient. Implementations
// decide the channel; the scheduler only knows the address.
type Notifier interface {
	SendReminder(ctx context.Context, email string) error
}

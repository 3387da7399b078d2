package eventstream

import "context"

// Publisher publishes persistence events to an event stream backend.
type Publisher interface {
	PublishSession(ctx context.Context, event *SessionPersistedEvent) error
	Close() error
}

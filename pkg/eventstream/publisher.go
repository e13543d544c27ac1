// Package eventstream defines the payload and publisher port used to hand
// assembled messages to downstream consumers.
package eventstream

import "context"

// Publisher publishes assembled message events to an event stream backend.
type Publisher interface {
	PublishMessage(ctx context.Context, event *MessageAssembledEvent) error
	Close() error
}

package eventstream

import "context"

// Publisher publishes vectorization events to an event stream backend.
type Publisher interface {
	PublishVectorized(ctx context.Context, event *VectorizedEvent) error
	Close() error
}

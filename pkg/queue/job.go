package queue

import "context"

// Job handles one message type.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type routed to the job.
	Type() string

	Handle(ctx context.Context, payload interface{}) error
}

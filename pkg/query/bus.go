package query

import "context"

// Bus carries tag invalidations between stores, typically in separate
// processes. A store publishes the tags it invalidates locally and applies
// the tags it receives without publishing them again.
type Bus interface {
	Publish(ctx context.Context, tags []Tag) error
	Subscribe(handler func(tags []Tag)) (unsubscribe func(), err error)
}

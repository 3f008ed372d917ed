package output

import (
	"context"
	"sync"
)

// FanOutPublisher publishes to multiple publishers in parallel.
type FanOutPublisher struct {
	publishers []Publisher
}

func NewFanOutPublisher(publishers ...Publisher) *FanOutPublisher {
	return &FanOutPublisher{
		publishers: publishers,
	}
}

// Len returns the number of targets.
func (f *FanOutPublisher) Len() int {
	return len(f.publishers)
}

func (f *FanOutPublisher) Publish(ctx context.Context, a Artifact) error {
	var wg sync.WaitGroup
	errs := make([]error, len(f.publishers))

	for i, p := range f.publishers {
		wg.Add(1)
		go func(idx int, p Publisher) {
			defer wg.Done()
			errs[idx] = p.Publish(ctx, a)
		}(i, p)
	}
	wg.Wait()

	// Return the first error in publisher order.
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

package main

// Helper is a goroutine that applies work to a queue of items until the
// queue closes, keeping the first error the work function returns.
type Helper[Work any, Ctx any] struct {
	work chan<- Work
	done <-chan error
}

// NewHelper creates a worker consuming work items from a channel and applying
// the given function to each item, until the work channel is closed. Once an
// item fails, the rest are drained without being applied. The size of the
// work channel is specified via 'workCap'.
func NewHelper[Work any, Ctx any](workCap int, fn func(Work, Ctx) error, ctx Ctx) *Helper[Work, Ctx] {
	work := make(chan Work, workCap)
	done := make(chan error, 1)

	go func() {
		defer close(done)
		var err error
		for item := range work {
			if err == nil {
				err = fn(item, ctx)
			}
		}
		done <- err
	}()

	return &Helper[Work, Ctx]{work: work, done: done}
}

// Close signals the helper that the last work has been dispatched, and it should
// exit once the queue is drained.
func (h *Helper[Work, Ctx]) Close() {
	close(h.work)
}

// Wait blocks until the helper has finished processing all work and returns
// the first error.
func (h *Helper[Work, Ctx]) Wait() error {
	return <-h.done
}

// Queue sends an item of work to the helper.
func (h *Helper[Work, Ctx]) Queue(item Work) {
	h.work <- item
}

// CloseWait is a convenience function that calls Close and then Wait.
func (h *Helper[Work, Ctx]) CloseWait() error {
	h.Close()
	return h.Wait()
}

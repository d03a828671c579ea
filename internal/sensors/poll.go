package sensors

import (
	"sync"
	"time"

	"github.com/relabs-tech/motion_collector/internal/acquisition"
)

// pollSource turns a blocking read function into an acquisition.Source by
// calling it on a fixed interval from its own goroutine.
type pollSource[T any] struct {
	name     string
	interval time.Duration
	read     func() (T, error)
}

func newPollSource[T any](name string, interval time.Duration, read func() (T, error)) *pollSource[T] {
	return &pollSource[T]{name: name, interval: interval, read: read}
}

// Subscribe starts polling. Unsubscribe stops the ticker and waits for the
// read in progress, so h is never called after it returns.
func (p *pollSource[T]) Subscribe(h acquisition.Handler[T]) (acquisition.Subscription, error) {
	quit := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
			}
			v, err := p.read()
			select {
			case <-quit:
				return
			default:
			}
			h(v, err)
		}
	}()

	var once sync.Once
	return acquisition.SubscriptionFunc(func() {
		once.Do(func() {
			close(quit)
			wg.Wait()
		})
	}), nil
}

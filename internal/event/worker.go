package event

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type worker struct {
	mu            sync.RWMutex
	subscriptions map[string][]func(event Queueable)
}

var (
	instance = &worker{
		subscriptions: map[string][]func(event Queueable){},
	}
	l = log.WithField("context", "event_worker")
)

// Subscribe registers fn for every event of the given type.
func Subscribe(eventType string, fn func(event Queueable)) {
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.subscriptions[eventType] = append(instance.subscriptions[eventType], fn)
}

func RunWorker() context.CancelFunc {
	ctx, cancelFunc := context.WithCancel(context.Background())
	instance.Run(ctx)
	return cancelFunc
}

func (w *worker) Run(ctx context.Context) {
	done := ctx.Done()
	go func() {
		l.Trace("events runner go")
		for {
			select {
			case <-done:
				return
			default:
			}
			event := Bus.pop()
			if event == nil {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if event.IsDropped() || event.IsProcessed() {
				continue
			}
			if event.Expired() {
				event.Drop()
				continue
			}
			w.mu.RLock()
			subscribers := w.subscriptions[event.Type()]
			w.mu.RUnlock()
			for _, fn := range subscribers {
				fn(event)
			}
			event.Process()
		}
	}()
}

package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Inproc is the single-process EventBus. One dispatch goroutine drains a
// buffered channel, so handlers observe events in publish order. When the
// buffer is saturated the newest event is dropped rather than stalling the
// ingestion side; stream consumers tolerate gaps.
type Inproc struct {
	ch      chan *models.Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool

	handlers []domrepo.EventHandler
	metrics  domrepo.Metrics
	l        *logger.Logger
}

func NewInproc(bufferSize int, metrics domrepo.Metrics, l *logger.Logger) *Inproc {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Inproc{
		ch:      make(chan *models.Event, bufferSize),
		stopCh:  make(chan struct{}),
		metrics: metrics,
		l:       l,
	}
}

// Subscribe registers a handler. Handlers registered after Start may miss
// events that are already in flight.
func (b *Inproc) Subscribe(h domrepo.EventHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish enqueues evt without blocking the caller.
func (b *Inproc) Publish(_ context.Context, evt *models.Event) error {
	if evt == nil {
		return nil
	}

	select {
	case <-b.stopCh:
		return fmt.Errorf("bus closed")
	default:
	}

	select {
	case b.ch <- evt:
		return nil
	default:
		b.metrics.RecordError("bus_backpressure_drop")
		b.l.Warn("event dropped, bus buffer full",
			logger.String("type", evt.Type),
			logger.String("symbol", evt.Symbol))
		return nil
	}
}

// Start launches the dispatch goroutine. Calling it twice is a no-op.
func (b *Inproc) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.dispatch(ctx)
	return nil
}

func (b *Inproc) dispatch(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case evt := <-b.ch:
			if evt == nil {
				continue
			}
			b.mu.Lock()
			handlers := b.handlers
			b.mu.Unlock()
			dispatchEvent(handlers, evt, b.l)
		}
	}
}

// Close stops dispatching. Buffered events that were never delivered are
// discarded.
func (b *Inproc) Close() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	return nil
}

// dispatchEvent invokes every handler sequentially, shielding the dispatch
// loop from handler panics.
func dispatchEvent(handlers []domrepo.EventHandler, evt *models.Event, l *logger.Logger) {
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.Error("event handler panic",
						logger.Any("panic", r),
						logger.String("type", evt.Type),
						logger.String("symbol", evt.Symbol))
				}
			}()
			h(evt)
		}()
	}
}

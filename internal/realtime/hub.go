package realtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Subscription is one stream client's view of a symbol. Events arrive on C
// in broadcast order; C is closed by Unsubscribe or Hub.Close.
type Subscription struct {
	ID     string
	Symbol string
	C      chan *models.Event
}

// Hub fans pipeline events out to per-symbol subscriber groups. Delivery is
// at-most-once: a subscriber whose buffer is full misses the event instead of
// blocking the broadcaster.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Subscription
	buf    int
	closed bool

	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewHub(bufferSize int, metrics domrepo.Metrics, l *logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		groups:  make(map[string]map[string]*Subscription),
		buf:     bufferSize,
		metrics: metrics,
		l:       l,
	}
}

// Subscribe registers a new client for symbol. The connection status event
// is queued before the subscription becomes visible to Broadcast, so it is
// always the first event the client reads.
func (h *Hub) Subscribe(symbol string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, fmt.Errorf("hub closed")
	}

	sub := &Subscription{
		ID:     uuid.NewString(),
		Symbol: symbol,
		C:      make(chan *models.Event, h.buf),
	}
	sub.C <- models.NewStatusEvent(symbol, true, "connected")

	group := h.groups[symbol]
	if group == nil {
		group = make(map[string]*Subscription)
		h.groups[symbol] = group
	}
	group[sub.ID] = sub
	h.metrics.SetSubscribers(symbol, len(group))

	h.l.Debug("stream subscriber added",
		logger.String("symbol", symbol),
		logger.String("subscription_id", sub.ID),
		logger.Int("subscribers", len(group)))
	return sub, nil
}

// Unsubscribe removes the client and closes its channel. Safe to call more
// than once and safe against concurrent Broadcast: channel sends happen under
// the read lock, the close happens under the write lock.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	group := h.groups[sub.Symbol]
	if group == nil {
		return
	}
	if _, ok := group[sub.ID]; !ok {
		return
	}
	delete(group, sub.ID)
	close(sub.C)
	if len(group) == 0 {
		delete(h.groups, sub.Symbol)
	}
	h.metrics.SetSubscribers(sub.Symbol, len(group))
}

// Broadcast delivers evt to every subscriber of its symbol without blocking.
func (h *Hub) Broadcast(evt *models.Event) {
	if evt == nil || evt.Symbol == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	for _, sub := range h.groups[evt.Symbol] {
		select {
		case sub.C <- evt:
		default:
			h.metrics.RecordError("stream_slow_drop")
			h.l.Debug("dropping event for slow subscriber",
				logger.String("symbol", evt.Symbol),
				logger.String("subscription_id", sub.ID))
		}
	}
}

// Subscribers reports the current group size for a symbol.
func (h *Hub) Subscribers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[symbol])
}

// Close terminates every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for symbol, group := range h.groups {
		for _, sub := range group {
			close(sub.C)
		}
		delete(h.groups, symbol)
		h.metrics.SetSubscribers(symbol, 0)
	}
	return nil
}

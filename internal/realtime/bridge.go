package realtime

import (
	"context"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	domrepo "github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/repository"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

// Bridge connects the event bus to the hub: bar and status events published
// by the ingestion side are fanned out to stream subscribers. Heartbeats are
// never relayed; each connection generates its own.
type Bridge struct {
	bus     domrepo.EventBus
	hub     *Hub
	metrics domrepo.Metrics
	l       *logger.Logger
}

func NewBridge(bus domrepo.EventBus, hub *Hub, metrics domrepo.Metrics, l *logger.Logger) *Bridge {
	return &Bridge{bus: bus, hub: hub, metrics: metrics, l: l}
}

// Start subscribes the hub to the bus and begins consuming.
func (b *Bridge) Start(ctx context.Context) error {
	b.bus.Subscribe(b.onEvent)
	return b.bus.Start(ctx)
}

// Close shuts the underlying bus down. Hub teardown is the caller's job so
// in-flight subscribers can be drained independently.
func (b *Bridge) Close() error {
	return b.bus.Close()
}

func (b *Bridge) onEvent(evt *models.Event) {
	if evt == nil {
		return
	}
	switch evt.Type {
	case models.EventTypeBar:
		if evt.Bar != nil {
			b.metrics.RecordLastClose(evt.Bar.Symbol, evt.Bar.Close)
		}
	case models.EventTypeStatus:
	default:
		return
	}
	b.hub.Broadcast(evt)
}

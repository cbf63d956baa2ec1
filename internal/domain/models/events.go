package models

import "time"

// Event types carried on the pipeline bus and fanned out to stream subscribers.
const (
	EventTypeBar       = "bar"
	EventTypeStatus    = "status"
	EventTypeHeartbeat = "heartbeat"
)

// Event is the envelope published by the ingestion side and delivered to
// realtime subscribers. Type selects which payload fields are meaningful.
type Event struct {
	Type      string    `json:"event"`
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Bar       *Bar      `json:"bar,omitempty"`
	OK        bool      `json:"ok"`
	Message   string    `json:"msg,omitempty"`
}

// StatusPayload is the wire body of a status event.
type StatusPayload struct {
	OK        bool      `json:"ok"`
	Message   string    `json:"msg"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatPayload is the wire body of a heartbeat event.
type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewBarEvent wraps a freshly upserted bar for broadcast.
func NewBarEvent(bar *Bar) *Event {
	return &Event{
		Type:      EventTypeBar,
		Symbol:    bar.Symbol,
		Timestamp: time.Now().UTC(),
		Bar:       bar,
		OK:        true,
	}
}

// NewStatusEvent reports pipeline health for a symbol to its subscribers.
func NewStatusEvent(symbol string, ok bool, msg string) *Event {
	return &Event{
		Type:      EventTypeStatus,
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		OK:        ok,
		Message:   msg,
	}
}

// NewHeartbeatEvent keeps idle connections alive.
func NewHeartbeatEvent() *Event {
	return &Event{
		Type:      EventTypeHeartbeat,
		Timestamp: time.Now().UTC(),
		OK:        true,
	}
}

// WirePayload returns the transport body for the event: bar events carry the
// bar itself, status events the {ok,msg,timestamp} triple, heartbeats just a
// timestamp.
func (e *Event) WirePayload() interface{} {
	switch e.Type {
	case EventTypeBar:
		return e.Bar
	case EventTypeStatus:
		return StatusPayload{OK: e.OK, Message: e.Message, Timestamp: e.Timestamp}
	default:
		return HeartbeatPayload{Timestamp: e.Timestamp}
	}
}

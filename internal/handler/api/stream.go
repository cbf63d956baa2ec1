package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/yybrother989/tesla-trading-agent-sub000/internal/domain/models"
	xhttp "github.com/yybrother989/tesla-trading-agent-sub000/pkg/http"
	applogger "github.com/yybrother989/tesla-trading-agent-sub000/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The REST surface already accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// streamFrame is the websocket wire envelope. SSE carries the same payload
// with the event type on the event line instead.
type streamFrame struct {
	Event  string      `json:"event"`
	Symbol string      `json:"symbol,omitempty"`
	Data   interface{} `json:"data"`
}

// StreamSSE streams bar and status events for one symbol as server-sent
// events. The first event is always the connected status; heartbeats keep
// proxies from reaping idle connections.
func (h *MarketDataHandler) StreamSSE(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normalizeSymbol(req.Symbol)

	sub, err := h.hub.Subscribe(symbol)
	if err != nil {
		return xhttp.ServiceUnavailableResponse(c, "stream closed")
	}
	defer h.hub.Unsubscribe(sub)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeSSE(res, evt); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if err := writeSSE(res, models.NewHeartbeatEvent()); err != nil {
				return nil
			}
		}
	}
}

func writeSSE(res *echo.Response, evt *models.Event) error {
	data, err := json.Marshal(evt.WirePayload())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}

// StreamWS streams the same events over a websocket for clients that keep a
// bidirectional connection open.
func (h *MarketDataHandler) StreamWS(c echo.Context) error {
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := normalizeSymbol(req.Symbol)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return nil
	}
	defer conn.Close()

	sub, err := h.hub.Subscribe(symbol)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
			time.Now().Add(time.Second))
		return nil
	}
	defer h.hub.Unsubscribe(sub)

	// Clients send nothing, but reading is what surfaces close frames and
	// dropped connections.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case evt, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := h.writeFrame(conn, evt); err != nil {
				h.l.Debug("websocket write failed",
					applogger.String("symbol", symbol),
					applogger.Error(err))
				return nil
			}
		case <-heartbeat.C:
			if err := h.writeFrame(conn, models.NewHeartbeatEvent()); err != nil {
				return nil
			}
		}
	}
}

func (h *MarketDataHandler) writeFrame(conn *websocket.Conn, evt *models.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return conn.WriteJSON(streamFrame{Event: evt.Type, Symbol: evt.Symbol, Data: evt.WirePayload()})
}

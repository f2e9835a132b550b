package wsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	application "savemore/contexts/community-experience/view-settlement/application"
	"savemore/contexts/community-experience/view-settlement/domain/entities"
	"savemore/contexts/community-experience/view-settlement/domain/services"
	wstransport "savemore/contexts/community-experience/view-settlement/transport/ws"
)

const (
	moduleName     = "community-experience/view-settlement"
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Conn is one viewing session's websocket. All writes go through a single
// writer goroutine; a client that stops draining its queue is disconnected.
type Conn struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func NewConn(conn *websocket.Conn, logger *slog.Logger) *Conn {
	return &Conn{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: application.ResolveLogger(logger),
	}
}

func (c *Conn) Notify(_ context.Context, itemID string, feedback services.Feedback) {
	c.enqueue(wstransport.NotificationMessage{
		Type:    wstransport.TypeNotification,
		ItemID:  itemID,
		Kind:    string(feedback.Kind),
		Title:   feedback.Title,
		Message: feedback.Message,
	})
}

func (c *Conn) PublishState(itemID string, state entities.AttemptState, remainingSeconds int) {
	c.enqueue(wstransport.ItemStateMessage{
		Type:             wstransport.TypeItemState,
		ItemID:           itemID,
		State:            string(state),
		RemainingSeconds: remainingSeconds,
	})
}

func (c *Conn) PushBalance(balance entities.Balance) {
	c.enqueue(wstransport.BalanceMessage{
		Type:          wstransport.TypeBalance,
		StarBalance:   balance.StarBalance,
		WalletBalance: balance.WalletBalance.StringFixed(2),
	})
}

func (c *Conn) PushError(message string) {
	c.enqueue(wstransport.ErrorMessage{Type: wstransport.TypeError, Message: message})
}

// Run reads client messages into dispatch until the peer goes away or ctx
// ends. It returns after the writer goroutine has exited.
func (c *Conn) Run(ctx context.Context, dispatch func(wstransport.ClientMessage)) {
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		c.writePump()
	}()
	go func() {
		select {
		case <-ctx.Done():
			c.shutdown()
		case <-c.done:
		}
	}()

	c.readPump(dispatch)
	c.shutdown()
	writer.Wait()
}

func (c *Conn) readPump(dispatch func(wstransport.ClientMessage)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("viewing session read ended",
					"event", "viewing_session_read_ended",
					"module", moduleName,
					"layer", "adapter",
					"error", err.Error(),
				)
			}
			return
		}
		var msg wstransport.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.PushError("malformed message")
			continue
		}
		dispatch(msg)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

func (c *Conn) enqueue(msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("viewing session message marshal failed",
			"event", "viewing_session_marshal_failed",
			"module", moduleName,
			"layer", "adapter",
			"error", err.Error(),
		)
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.logger.Warn("viewing session send queue full, disconnecting",
			"event", "viewing_session_slow_consumer",
			"module", moduleName,
			"layer", "adapter",
		)
		c.shutdown()
	}
}

func (c *Conn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

package api

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/domain/event"
	"chat-live/errors"
	"chat-live/services"
	"chat-live/sink"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client is one websocket connection. The read pump turns frames into commands,
// the write pump drains the connection sink onto the socket.
type client struct {
	id      domain.ConnectionID
	userID  string
	conn    *websocket.Conn
	sink    *sink.ConnectionSink
	service services.IChatService
	log     *slog.Logger
}

func newClient(conn *websocket.Conn, userID string, service services.IChatService,
	log *slog.Logger, bufferSize int, deliveryTimeout time.Duration, maxFrameSize int64) *client {
	id := domain.NewConnectionID()
	conn.SetReadLimit(maxFrameSize)
	return &client{
		id:      id,
		userID:  userID,
		conn:    conn,
		sink:    sink.NewConnectionSink(id, bufferSize, deliveryTimeout),
		service: service,
		log:     log.With("connection_id", id.String(), "user_id", userID),
	}
}

// readPump blocks until the socket closes, then disconnects the connection exactly once.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.service.Disconnect(chat.DisconnectCommand{Connection: c.id})
		c.sink.Close()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err)
			} else {
				c.log.Debug("Client disconnected", "error", err)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reject(ctx, "", "", errors.ErrInvalidPayload)
			continue
		}
		c.handle(ctx, frame)
	}
}

func (c *client) handle(ctx context.Context, frame InboundFrame) {
	switch frame.Type {
	case FrameJoin:
		room := domain.RoomID(frame.RoomID)
		if room == "" {
			c.reject(ctx, room, "", errors.ErrInvalidPayload)
			return
		}
		if err := c.service.Join(ctx, chat.JoinCommand{Connection: c.id, UserID: c.userID, Room: room}, c.sink); err != nil {
			c.reject(ctx, room, "", err)
			return
		}
		c.push(ctx, event.RoomJoined{Room: room})
	case FrameLeave:
		if room, ok := c.service.Leave(chat.LeaveCommand{Connection: c.id}); ok {
			c.push(ctx, event.RoomLeft{Room: room})
		}
	case FrameMessage:
		cmd := chat.PostMessageCommand{
			Connection:  c.id,
			UserID:      c.userID,
			Text:        frame.Text,
			ClientToken: frame.ClientToken,
		}
		if frame.Image != nil {
			cmd.Image = &domain.Image{Name: frame.Image.Name, MimeType: frame.Image.MimeType}
		}
		message, err := c.service.PostMessage(ctx, cmd)
		switch {
		case err != nil:
			c.reject(ctx, "", frame.ClientToken, err)
		case message == nil:
			// Only the sender hears about a message sent outside any room
			c.reject(ctx, "", frame.ClientToken, errors.ErrRegistrationAbsent)
		}
	default:
		c.reject(ctx, "", frame.ClientToken, errors.ErrInvalidPayload)
	}
}

func (c *client) reject(ctx context.Context, room domain.RoomID, clientToken string, err error) {
	code := errors.Code(err)
	reason := err.Error()
	if code == errors.CodeInternal || stdErrors.Is(err, errors.ErrPersistenceFailure) {
		// Storage details stay in the logs
		c.log.Error("Frame failed", "room_id", room, "error", err)
		reason = "message could not be processed"
	}
	c.push(ctx, event.MessageRejected{Room: room, ClientToken: clientToken, Code: code, Reason: reason})
}

func (c *client) push(ctx context.Context, e event.DomainEvent) {
	if err := c.sink.Consume(ctx, e); err != nil {
		c.log.Debug("Event not queued", "error", err)
	}
}

// closeOnShutdown ends the connection when the server stops.
// http.Server.Shutdown does not close hijacked sockets.
func (c *client) closeOnShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.log.Debug("Closing connection on shutdown")
		// The write pump sends the close frame and closes the socket, the read pump then disconnects
		c.sink.Close()
	case <-c.sink.Done():
	}
}

// writePump is the only writer of the socket.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.sink.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case evt := <-c.sink.Events():
			frame, ok := toOutboundFrame(evt)
			if !ok {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

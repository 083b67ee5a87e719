package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"sphere/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type gatewayHub interface {
	Connect() (string, chan models.ServerEvent)
	Disconnect(ctx context.Context, connID string)
	Announce(ctx context.Context, connID, userID string)
	JoinUserRoom(connID, userID string)
	JoinRoom(connID, roomID string)
	SendMessage(connID string, msg models.MessageEvent)
	SendNotification(connID string, n models.NotificationEvent)
	Typing(connID string, t models.TypingEvent)
	StopTyping(connID string, t models.TypingEvent)
}

type Connection struct {
	ws         wsConnection
	hub        gatewayHub
	connID     string
	fromClient chan models.ClientEvent
	fromServer chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(hub gatewayHub, ws wsConnection) *Connection {
	connID, fromServer := hub.Connect()
	return &Connection{
		ws:         ws,
		hub:        hub,
		connID:     connID,
		fromClient: make(chan models.ClientEvent),
		fromServer: fromServer,
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		// Teardown must reach the registry even after ctx is canceled.
		c.hub.Disconnect(context.Background(), c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpEvents(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpEvents(ctx context.Context) error {
	for {
		var ev models.ClientEvent
		if err := c.ws.ReadJSON(&ev); err != nil {
			return err
		}
		select {
		case c.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-c.fromClient:
			c.processClientEvent(ctx, ev)
		case ev := <-c.fromServer:
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// processClientEvent dispatches one inbound event. Fire-and-forget: a
// malformed or missing-field payload is dropped without a response, and an
// unknown room relays to nobody.
func (c *Connection) processClientEvent(ctx context.Context, ev models.ClientEvent) {
	switch ev.Event {
	case models.EventAddUser:
		var userID string
		if json.Unmarshal(ev.Data, &userID) == nil {
			c.hub.Announce(ctx, c.connID, userID)
		}
	case models.EventJoinUserRoom:
		var userID string
		if json.Unmarshal(ev.Data, &userID) == nil {
			c.hub.JoinUserRoom(c.connID, userID)
		}
	case models.EventJoinRoom:
		var roomID string
		if json.Unmarshal(ev.Data, &roomID) == nil {
			c.hub.JoinRoom(c.connID, roomID)
		}
	case models.EventSendMessage:
		var msg models.MessageEvent
		if json.Unmarshal(ev.Data, &msg) == nil {
			c.hub.SendMessage(c.connID, msg)
		}
	case models.EventSendNotification:
		var n models.NotificationEvent
		if json.Unmarshal(ev.Data, &n) == nil {
			c.hub.SendNotification(c.connID, n)
		}
	case models.EventTyping:
		var t models.TypingEvent
		if json.Unmarshal(ev.Data, &t) == nil {
			c.hub.Typing(c.connID, t)
		}
	case models.EventStopTyping:
		var t models.TypingEvent
		if json.Unmarshal(ev.Data, &t) == nil {
			c.hub.StopTyping(c.connID, t)
		}
	}
}

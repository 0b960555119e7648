package ws

import (
	"context"
	"errors"
	"sync"

	"ringlink/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

type eventRelay interface {
	Register(connID string) chan models.ServerMessage
	Deregister(connID string)
	HandleEvent(connID string, msg models.ClientMessage)
}

// Connection pumps signaling events between one websocket and the
// relay until either side closes.
type Connection struct {
	ws         wsConnection
	relay      eventRelay
	connID     string
	fromClient chan models.ClientMessage
	fromServer chan models.ServerMessage
	errorCh    chan error
}

func NewConnection(relay eventRelay, ws wsConnection, connID string) *Connection {
	return &Connection{
		ws:         ws,
		relay:      relay,
		connID:     connID,
		fromClient: make(chan models.ClientMessage),
		fromServer: relay.Register(connID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.relay.Deregister(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
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

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var msg models.ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return err
		}
		select {
		case c.fromClient <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.fromClient:
			c.relay.HandleEvent(c.connID, msg)
		case msg := <-c.fromServer:
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

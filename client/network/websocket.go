package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/messages"
	"github.com/gorilla/websocket"
)

// WSClient follows the watch stream of one room.
type WSClient struct {
	serverAddr string
	token      string
	conn       *websocket.Conn
}

// NewWSClient creates a new WebSocket client.
func NewWSClient(serverAddr string, token string) *WSClient {
	return &WSClient{
		serverAddr: serverAddr,
		token:      token,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	log.Debug("Connecting to WebSocket server at %s", c.serverAddr)
	header := http.Header{"Authorization": {"Bearer " + c.token}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.serverAddr, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to server: %v (%s)", err, resp.Status)
		}
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	c.conn = conn
	return nil
}

// HandleMessages sends every view received from the server to views until
// the connection closes or ctx is done.
func (c *WSClient) HandleMessages(ctx context.Context, views chan<- *game.View) error {
	defer c.conn.Close()
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return &ErrConnectionClosedByServer{}
			}
			return fmt.Errorf("failed to read message: %v", err)
		}

		view, err := decodeView(b)
		if err != nil {
			log.Error("Failed to handle message: %v", err)
			continue
		}
		select {
		case views <- view:
		case <-ctx.Done():
			return nil
		}
	}
}

func decodeView(b []byte) (*game.View, error) {
	msg := &messages.Message{}
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}
	switch msg.Type {
	case messages.MessageTypeGame:
		view := &game.View{}
		if err := json.Unmarshal(msg.Payload, view); err != nil {
			return nil, fmt.Errorf("failed to deserialize game message: %v", err)
		}
		return view, nil
	case messages.MessageTypeError:
		payload := &messages.ErrorPayload{}
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			return nil, fmt.Errorf("failed to deserialize error message: %v", err)
		}
		return nil, fmt.Errorf("server error: %s", payload.Error)
	default:
		return nil, fmt.Errorf("received unexpected message type from WebSocket server: %s", msg.Type)
	}
}

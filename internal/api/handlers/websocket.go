package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	ws "github.com/property-booking/backend/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Property pages are served from other origins
		return true
	},
}

// WebSocketUpgrade returns a handler that upgrades HTTP connections to WebSocket.
func WebSocketUpgrade(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		client := ws.NewClient(hub)
		hub.Register(client)

		// Clients may watch a fixed set of properties from the start
		if ids, err := optIDList("property", r.URL.Query()["property"]...); err == nil && len(ids) > 0 {
			client.Subscribe(ids...)
		}

		// Start read and write pumps
		go writePump(conn, client)
		go readPump(conn, client, hub)
	}
}

// writePump pumps messages from the hub to the WebSocket connection.
func writePump(conn *websocket.Conn, client *ws.Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send():
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection to the hub.
func readPump(conn *websocket.Conn, client *ws.Client, hub *ws.Hub) {
	defer func() {
		hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(65536)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		// Handle client commands (subscribe, ping, etc.)
		handleClientMessage(message, client)
	}
}

// handleClientMessage processes incoming client commands. Replies go
// through the client's send channel so that writePump stays the only writer.
func handleClientMessage(message []byte, client *ws.Client) {
	var cmd ws.Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		reply(client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:    "invalid_message",
			Message: "Message is not valid JSON",
		}))
		return
	}

	switch cmd.Type {
	case ws.TypePing:
		reply(client, ws.NewMessage(ws.TypePong, nil))
	case ws.TypeSubscribe:
		client.Subscribe(cmd.PropertyIDs...)
		reply(client, ws.NewMessage(ws.TypeSubscribeAck, ws.SubscribeAckPayload{PropertyIDs: client.Subscriptions()}))
	case ws.TypeUnsubscribe:
		client.Unsubscribe(cmd.PropertyIDs...)
		reply(client, ws.NewMessage(ws.TypeSubscribeAck, ws.SubscribeAckPayload{PropertyIDs: client.Subscriptions()}))
	default:
		reply(client, ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:         "unknown_command",
			Message:      "Unknown command",
			OriginalType: string(cmd.Type),
		}))
	}
}

func reply(client *ws.Client, msg ws.Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket reply: %v", err)
		return
	}
	if !client.Deliver(data) {
		log.Println("WebSocket client unavailable, dropping reply")
	}
}

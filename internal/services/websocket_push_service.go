package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"tip-ledger/internal/ledger"
	"tip-ledger/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
)

// WebSocket Upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection 事件流连接
type Connection struct {
	ID       string          `json:"id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage is the frame written to clients.
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// ClientCommand is what clients may send: {"action":"subscribe","filter":{...}}.
type ClientCommand struct {
	Action string             `json:"action"`
	Filter SubscriptionFilter `json:"filter"`
}

// WebSocketPushService streams committed ledger events to websocket clients.
type WebSocketPushService struct {
	connections   map[string]*Connection
	mutex         sync.RWMutex
	subscriptions *WebSocketSubscriptionManager

	hub        chan ledger.Event
	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
}

func NewWebSocketPushService() *WebSocketPushService {
	s := &WebSocketPushService{
		connections:   make(map[string]*Connection),
		subscriptions: NewWebSocketSubscriptionManager(),
		hub:           make(chan ledger.Event, 256),
		register:      make(chan *Connection),
		unregister:    make(chan *Connection),
		done:          make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case <-s.done:
			return
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case e := <-s.hub:
			s.handleBroadcast(e)
		}
	}
}

// Stop closes every connection.
func (s *WebSocketPushService) Stop() {
	close(s.done)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, conn := range s.connections {
		conn.Conn.Close()
		delete(s.connections, id)
		s.subscriptions.UnregisterClient(id)
	}
	metrics.WebSocketClients.Set(0)
}

// HandleEvent queues e for broadcast. A full hub drops the event.
func (s *WebSocketPushService) HandleEvent(_ context.Context, e ledger.Event) {
	select {
	case s.hub <- e:
	default:
		log.Printf("⚠️ [WebSocket] Hub full, dropping %s event", e.Event)
	}
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	s.connections[conn.ID] = conn
	count := len(s.connections)
	s.mutex.Unlock()
	metrics.WebSocketClients.Set(float64(count))

	log.Printf("📱 WebSocket connection registered: connID=%s", conn.ID)
	s.sendToConnection(conn, PushMessage{
		Type:      "connection_established",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
		Data:      map[string]interface{}{"connection_id": conn.ID},
	})
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	if _, ok := s.connections[conn.ID]; ok {
		delete(s.connections, conn.ID)
		close(conn.Send)
	}
	count := len(s.connections)
	s.mutex.Unlock()
	s.subscriptions.UnregisterClient(conn.ID)
	metrics.WebSocketClients.Set(float64(count))

	log.Printf("📱 WebSocket connection unregistered: connID=%s", conn.ID)
}

func (s *WebSocketPushService) handleBroadcast(e ledger.Event) {
	msg := PushMessage{
		Type:      "ledger_event",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
		Data:      e,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("❌ Failed to marshal message: %v", err)
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for id, conn := range s.connections {
		if !s.subscriptions.Matches(id, e) {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			log.Printf("⚠️ [WebSocket] Send buffer full, skipping connID=%s", id)
		}
	}
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

// HandleWebSocket upgrades the request and starts streaming events matching filter.
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, filter SubscriptionFilter) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	conn := &Connection{
		ID:       uuid.NewString(),
		Conn:     ws,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}
	s.subscriptions.RegisterClient(conn.ID, filter)
	select {
	case s.register <- conn:
	case <-s.done:
		ws.Close()
		return
	}

	go s.handleConnectionWrite(conn)
	go s.handleConnectionRead(conn)
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ Write message failed: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		_, data, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var cmd ClientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			if err := s.subscriptions.Subscribe(conn.ID, cmd.Filter); err == nil {
				s.sendToConnection(conn, PushMessage{
					Type:      "subscribed",
					Timestamp: time.Now().Format(time.RFC3339),
					MessageID: uuid.NewString(),
					Data:      cmd.Filter,
				})
			}
		case "ping":
			s.sendToConnection(conn, PushMessage{Type: "pong", Timestamp: time.Now().Format(time.RFC3339), MessageID: uuid.NewString()})
		}
	}
}

// GetActiveConnections returns the number of connected clients.
func (s *WebSocketPushService) GetActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

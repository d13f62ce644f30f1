package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Observer is told about connection churn and inbound traffic.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageReceived()
}

type noopObserver struct{}

func (noopObserver) ConnectionOpened() {}
func (noopObserver) ConnectionClosed() {}
func (noopObserver) MessageReceived()  {}

// client is one live socket. Only writePump writes to conn.
type client struct {
	playerID  string
	conn      *websocket.Conn
	send      chan domain.ServerMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ConnectionManager tracks one socket per player and delivers coordinator
// broadcasts to it without blocking the caller.
type ConnectionManager struct {
	clients  map[string]*client
	mu       sync.RWMutex
	observer Observer
	log      zerolog.Logger
}

func NewConnectionManager(log zerolog.Logger) *ConnectionManager {
	return &ConnectionManager{
		clients:  make(map[string]*client),
		observer: noopObserver{},
		log:      log.With().Str("component", "gateway").Logger(),
	}
}

func (cm *ConnectionManager) SetObserver(o Observer) {
	if o == nil {
		o = noopObserver{}
	}
	cm.observer = o
}

// add registers conn for playerID, closing any older socket of the same
// player, and starts its writer.
func (cm *ConnectionManager) add(playerID string, conn *websocket.Conn) *client {
	c := &client{
		playerID: playerID,
		conn:     conn,
		send:     make(chan domain.ServerMessage, sendBuffer),
		done:     make(chan struct{}),
	}

	cm.mu.Lock()
	old, exists := cm.clients[playerID]
	cm.clients[playerID] = c
	cm.mu.Unlock()

	if exists {
		old.close()
	} else {
		cm.observer.ConnectionOpened()
	}
	go cm.writePump(c)
	return c
}

// remove drops c if it is still the player's current socket. It reports
// false when a newer connection already replaced it.
func (cm *ConnectionManager) remove(c *client) bool {
	cm.mu.Lock()
	current, exists := cm.clients[c.playerID]
	matched := exists && current == c
	if matched {
		delete(cm.clients, c.playerID)
	}
	cm.mu.Unlock()

	c.close()
	if matched {
		cm.observer.ConnectionClosed()
	}
	return matched
}

func (cm *ConnectionManager) IsConnected(playerID string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.clients[playerID]
	return ok
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// Send queues msg for playerID. Players without a socket are skipped; a
// socket whose queue is full is closed so the client reconnects and
// resyncs from a snapshot.
func (cm *ConnectionManager) Send(playerID string, msg domain.ServerMessage) {
	cm.mu.RLock()
	c, ok := cm.clients[playerID]
	cm.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case <-c.done:
	case c.send <- msg:
	default:
		cm.log.Warn().Str("player", playerID).Str("type", msg.Type).Msg("send queue full, closing connection")
		c.close()
	}
}

// CloseAll closes every socket.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	clients := cm.clients
	cm.clients = make(map[string]*client)
	cm.mu.Unlock()

	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
		cm.observer.ConnectionClosed()
	}
}

func (cm *ConnectionManager) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				cm.log.Debug().Err(err).Str("player", c.playerID).Msg("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

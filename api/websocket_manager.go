package api

import (
	"sync"

	"github.com/gorilla/websocket"

	"riskplane/theme"
)

// connWithMutex wraps a WebSocket connection with its own mutex so event
// broadcasts and per-connection replies never interleave frames.
type connWithMutex struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// WSConnectionManager fans theme events out to connected listeners.
type WSConnectionManager struct {
	mu          sync.RWMutex
	connections map[*websocket.Conn]*connWithMutex
}

// NewWSConnectionManager creates an empty connection manager.
func NewWSConnectionManager() *WSConnectionManager {
	return &WSConnectionManager{
		connections: make(map[*websocket.Conn]*connWithMutex),
	}
}

// Add adds a connection to the manager.
func (m *WSConnectionManager) Add(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn] = &connWithMutex{conn: conn}
}

// Remove removes a connection from the manager.
func (m *WSConnectionManager) Remove(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, conn)
}

// BroadcastEvent sends ev to every connected listener. Dead connections are
// dropped on write failure.
func (m *WSConnectionManager) BroadcastEvent(ev theme.Event) {
	m.mu.RLock()
	conns := make([]*connWithMutex, 0, len(m.connections))
	for _, cwm := range m.connections {
		conns = append(conns, cwm)
	}
	m.mu.RUnlock()

	for _, cwm := range conns {
		cwm.mu.Lock()
		err := cwm.conn.WriteJSON(ev)
		cwm.mu.Unlock()

		if err != nil {
			m.Remove(cwm.conn)
		}
	}
}

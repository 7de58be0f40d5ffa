package server

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/jsbridge/internal/bridge"
)

// session is one live bridge and the connection carrying it.
type session struct {
	bridge    *bridge.Bridge
	conn      io.Closer
	transport string
}

// Hub tracks the bridges of connected remotes.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]session
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]session)}
}

func (h *Hub) add(connID string, s session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[connID] = s
}

func (h *Hub) remove(connID string) (session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[connID]
	delete(h.sessions, connID)
	return s, ok
}

// Len returns the number of live bridges.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Get returns the bridge serving a connection.
func (h *Hub) Get(connID string) (*bridge.Bridge, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[connID]
	return s.bridge, ok
}

// BridgeInfo describes one live bridge.
type BridgeInfo struct {
	ConnID    string    `json:"conn_id"`
	BridgeID  string    `json:"bridge_id"`
	CreatedAt time.Time `json:"created_at"`
	Transport string    `json:"transport"`
	State     string    `json:"state"`
	Pending   int       `json:"pending_calls"`
	Handlers  []string  `json:"handlers"`
}

// List describes every live bridge, ordered by connection id.
func (h *Hub) List() []BridgeInfo {
	h.mu.RLock()
	infos := make([]BridgeInfo, 0, len(h.sessions))
	for connID, s := range h.sessions {
		created, _ := s.bridge.ID().Timestamp()
		infos = append(infos, BridgeInfo{
			ConnID:    connID,
			BridgeID:  s.bridge.ID().String(),
			CreatedAt: created,
			Transport: s.transport,
			State:     s.bridge.State().String(),
			Pending:   s.bridge.PendingCalls(),
			Handlers:  s.bridge.Handlers(),
		})
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ConnID < infos[j].ConnID })
	return infos
}

// CloseAll closes every bridge and its connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.bridge.Close()
		_ = s.conn.Close()
	}
}

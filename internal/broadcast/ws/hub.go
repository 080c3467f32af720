package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/esports-wager-settlement/internal/settlement/notify"
)

// client serializa as escritas numa conexão (gorilla aceita um único writer)
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por chave
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// key -> conjunto de clientes
	subs map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão: subscribe/unsubscribe em chaves e ping
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	c := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Key != "" {
				h.subscribe(c, msg.Key)
			}
		case "unsubscribe":
			h.unsubscribe(c, msg.Key)
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
	h.drop(c)
}

func (h *Hub) subscribe(c *client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[*client]struct{})
	}
	h.subs[key][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// drop remove o cliente de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// Subscribers informa quantos clientes assinam a chave
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}

// Broadcast envia o envelope para os assinantes da sua chave
func (h *Hub) Broadcast(env notify.Envelope) int {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[env.Key]))
	for c := range h.subs[env.Key] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return 0
	}

	b, err := json.Marshal(env)
	if err != nil {
		h.log.Warn("encode envelope", zap.Error(err))
		return 0
	}
	sent := 0
	for _, c := range targets {
		if err := c.write(b); err != nil {
			h.log.Debug("ws write failed", zap.String("key", env.Key), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

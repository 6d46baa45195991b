// internal/writer/live/hub.go
package live

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/gem-poller/internal/logging"
	"github.com/tamzrod/gem-poller/internal/poller"
	"github.com/tamzrod/gem-poller/internal/status"
)

const writeWait = 5 * time.Second

// Message is the JSON pushed to live clients for every poll.
type Message struct {
	DeviceID string             `json:"device_id"`
	At       time.Time          `json:"at"`
	Tries    int                `json:"tries"`
	ID       string             `json:"id,omitempty"`
	Serial   string             `json:"serial,omitempty"`
	Values   map[string]float64 `json:"values,omitempty"`
	Resets   []int              `json:"resets,omitempty"`
	Stale    []int              `json:"stale,omitempty"`
	Error    string             `json:"error,omitempty"`
	Code     uint16             `json:"code,omitempty"`
}

// NewMessage flattens a poll result.
func NewMessage(res poller.PollResult) Message {
	m := Message{DeviceID: res.DeviceID, At: res.At, Tries: res.Tries}
	if res.Err != nil {
		m.Error = res.Err.Error()
		m.Code = status.ErrorCode(res.Err)
		return m
	}
	if r := res.Record; r != nil {
		m.ID = r.ID.String()
		m.Serial = r.Serial
		m.Values = r.Values
		m.Resets = r.Resets
		m.Stale = r.Stale
	}
	return m
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // one writer at a time
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub broadcasts poll results to websocket clients.
// New clients get the latest message of every device first.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	latest  map[string][]byte

	upgrader websocket.Upgrader
	log      logging.Logger
}

func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	return &Hub{
		clients: make(map[*client]bool),
		latest:  make(map[string][]byte),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Write implements writer.Writer. A client that cannot keep up is dropped;
// that is never a sink error.
func (h *Hub) Write(res poller.PollResult) error {
	data, err := json.Marshal(NewMessage(res))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.latest[res.DeviceID] = data
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.log.Debug("live client dropped: %v", err)
			h.remove(c)
		}
	}
	return nil
}

// Clients reports how many clients are connected.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warning("websocket upgrade: %v", err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = true
	replay := make([][]byte, 0, len(h.latest))
	ids := make([]string, 0, len(h.latest))
	for id := range h.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		replay = append(replay, h.latest[id])
	}
	h.mu.Unlock()

	for _, data := range replay {
		if err := c.send(data); err != nil {
			h.remove(c)
			return
		}
	}

	// drain until the client goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(c)
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.conn.Close()
}

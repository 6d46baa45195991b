// internal/writer/live/hub_test.go
package live

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/gem-poller/internal/delta"
	"github.com/tamzrod/gem-poller/internal/frame"
	"github.com/tamzrod/gem-poller/internal/poller"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHub_ReplaysLatestThenBroadcasts(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	id := uuid.New()
	require.NoError(t, h.Write(poller.PollResult{
		DeviceID: "gem1",
		Tries:    1,
		Record:   &delta.Record{ID: id, Serial: "00712345", Values: map[string]float64{"ch1_a_power": 12.5}},
	}))

	conn := dial(t, h)

	first := read(t, conn)
	assert.Equal(t, "gem1", first.DeviceID)
	assert.Equal(t, id.String(), first.ID)
	assert.Equal(t, 12.5, first.Values["ch1_a_power"])

	require.NoError(t, h.Write(poller.PollResult{
		DeviceID: "gem1",
		Tries:    3,
		Err:      &poller.PollError{DeviceID: "gem1", Tries: 3, Kind: poller.KindFraming, Err: &frame.ChecksumError{}},
	}))

	second := read(t, conn)
	assert.Equal(t, frame.CodeChecksum, second.Code)
	assert.Contains(t, second.Error, "after 3 tries")
	assert.Empty(t, second.Values)
}

func TestHub_WriteWithoutClients(t *testing.T) {
	h := NewHub(nil)
	assert.NoError(t, h.Write(poller.PollResult{DeviceID: "gem1"}))
	assert.Zero(t, h.Clients())
}

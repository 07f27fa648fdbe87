package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/wager-ledger/internal/service"
)

func dialWS(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/users/" + userID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	r := newTestRouter(t, hub)
	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, u := range []string{"u1", "u2"} {
		w := do(t, r, http.MethodPut, "/api/v1/users/"+u, nil)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	owner := dialWS(t, srv, "u1")
	other := dialWS(t, srv, "u2")
	require.Eventually(t, func() bool {
		return hub.ClientCount(ctx, "u1") == 1 && hub.ClientCount(ctx, "u2") == 1
	}, time.Second, 10*time.Millisecond)

	w := do(t, r, http.MethodPost, "/api/v1/users/u1/accounts", account("a@example.com", 100))
	require.Equal(t, http.StatusCreated, w.Code)

	owner.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := owner.ReadMessage()
	require.NoError(t, err)

	var ev service.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, service.EventAggregateUpdated, ev.Type)
	assert.Equal(t, "u1", ev.UserID)

	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "another user's events must not be delivered")
}

func TestHub_UnregistersOnClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(newTestRouter(t, hub))
	defer srv.Close()

	conn := dialWS(t, srv, "u1")
	require.Eventually(t, func() bool { return hub.ClientCount(ctx, "u1") == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount(ctx, "u1") == 0 },
		time.Second, 10*time.Millisecond)
}

func TestHub_NotifyWithoutClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	// Must not block or panic.
	hub.Notify("nobody", service.Event{Type: service.EventHistoryPurged, UserID: "nobody"})
	assert.Equal(t, 0, hub.ClientCount(ctx, "nobody"))
}

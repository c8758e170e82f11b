package connection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/coinfeed/internal/model"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig(server *httptest.Server) ClientConfig {
	return ClientConfig{
		URL:          wsURL(server),
		PingTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   100,
	}
}

// pushMessage encodes a push with n records stamped with ts.
func pushMessage(t *testing.T, n int, ts string) []byte {
	t.Helper()
	msg := model.PushMessage{Event: model.PushEvent, Data: []model.CoinRecord{}, LastUpdated: ts}
	for i := 1; i <= n; i++ {
		msg.Data = append(msg.Data, model.CoinRecord{ID: model.NumericID(int64(i)), Name: "Coin", Symbol: "C"})
	}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestClient_Connect(t *testing.T) {
	server := mockWSServer(t, drain)
	defer server.Close()

	client := NewClient(testConfig(server), nil)
	ctx := context.Background()

	err := client.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	err = client.Close()
	if err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}

	if err := client.Connect(ctx); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := NewClient(testConfig(server), nil)
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("Connect to a non-websocket endpoint succeeded")
	}
	if client.IsConnected() {
		t.Error("IsConnected after failed Connect")
	}
}

func TestClient_Updates(t *testing.T) {
	frames := [][]byte{
		pushMessage(t, 2, "2024-01-01T00:00:00.000Z"),
		[]byte(`not json`),
		[]byte(`{"event":"somethingElse","data":[]}`),
		pushMessage(t, 3, "2024-01-01T00:10:00.000Z"),
	}

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		drain(conn)
	})
	defer server.Close()

	c := newClient(testConfig(server), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	var got []Update
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case u := <-c.Updates():
			got = append(got, u)
		case <-timeout:
			t.Fatalf("timeout waiting for updates, received %d of 2", len(got))
		}
	}

	if len(got[0].Message.Data) != 2 || got[0].Message.LastUpdated != "2024-01-01T00:00:00.000Z" {
		t.Errorf("first update = %+v", got[0].Message)
	}
	if len(got[1].Message.Data) != 3 {
		t.Errorf("second update has %d records, want 3", len(got[1].Message.Data))
	}
	if got[0].ReceivedAt.IsZero() || got[0].Size != len(frames[0]) {
		t.Errorf("update metadata = %v, %d", got[0].ReceivedAt, got[0].Size)
	}
	if n := c.decodeErrors.Load(); n != 1 {
		t.Errorf("decodeErrors = %d, want 1", n)
	}
}

func TestClient_KeepsNewestWhenBehind(t *testing.T) {
	var frames [][]byte
	for i := 1; i <= 5; i++ {
		frames = append(frames, pushMessage(t, i, ""))
	}

	sent := make(chan struct{})
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		close(sent)
		drain(conn)
	})
	defer server.Close()

	cfg := testConfig(server)
	cfg.BufferSize = 1
	c := newClient(cfg, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	<-sent
	deadline := time.Now().Add(time.Second)
	for c.dropped.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	u := <-c.Updates()
	if len(u.Message.Data) != 5 {
		t.Errorf("pending update has %d records, want the newest (5)", len(u.Message.Data))
	}
	if n := c.dropped.Load(); n != 4 {
		t.Errorf("dropped = %d, want 4", n)
	}
}

func TestClient_ServerClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
			time.Now().Add(time.Second),
		)
	})
	defer server.Close()

	client := NewClient(testConfig(server), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
			t.Errorf("error = %v, want going away close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error after server close")
	}

	deadline := time.Now().Add(time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.IsConnected() {
		t.Error("IsConnected after server close")
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testConfig(server), nil)
	ctx := context.Background()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// First close should succeed
	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}

	// Second close should be no-op
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClient_PingHandler(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(50 * time.Millisecond)

		// Send ping
		if err := conn.WriteControl(websocket.PingMessage, []byte("heartbeat"), time.Now().Add(time.Second)); err != nil {
			t.Logf("ping error: %v", err)
			return
		}
		time.Sleep(500 * time.Millisecond)
	})
	defer server.Close()

	c := newClient(testConfig(server), nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	c.mu.RLock()
	connectedAt := c.lastPingAt
	c.mu.RUnlock()

	// Give time for ping to be processed
	time.Sleep(200 * time.Millisecond)

	c.mu.RLock()
	lastPing := c.lastPingAt
	c.mu.RUnlock()

	if !lastPing.After(connectedAt) {
		t.Error("lastPingAt not updated by server ping")
	}
}

func TestClient_StaleConnection(t *testing.T) {
	// The handler never reads, so client pings go unanswered.
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	cfg := testConfig(server)
	cfg.PingTimeout = 90 * time.Millisecond
	client := NewClient(cfg, nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	select {
	case err := <-client.Errors():
		if !errors.Is(err, ErrStaleConnection) {
			t.Errorf("error = %v, want ErrStaleConnection", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale connection not detected")
	}
}

func TestWatcher_Reconnects(t *testing.T) {
	frames := [][]byte{pushMessage(t, 1, ""), pushMessage(t, 2, "")}

	var conns atomic.Int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		if int(n) <= len(frames) {
			conn.WriteMessage(websocket.TextMessage, frames[n-1])
		}
		if n == 1 {
			// Drop the first connection right after its push.
			return
		}
		drain(conn)
	})
	defer server.Close()

	cfg := WatcherConfig{
		Client:            testConfig(server),
		ReconnectBaseWait: 10 * time.Millisecond,
		ReconnectMaxWait:  50 * time.Millisecond,
	}
	w := NewWatcher(cfg, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var sizes []int
	timeout := time.After(2 * time.Second)
	for len(sizes) < 2 {
		select {
		case u := <-w.Updates():
			sizes = append(sizes, len(u.Message.Data))
		case <-timeout:
			t.Fatalf("timeout waiting for updates across reconnect, got %v", sizes)
		}
	}
	if sizes[0] != 1 || sizes[1] != 2 {
		t.Errorf("update sizes = %v, want [1 2]", sizes)
	}

	stats := w.Stats()
	if stats.Connects < 2 {
		t.Errorf("Connects = %d, want >= 2", stats.Connects)
	}
	if stats.Updates < 2 {
		t.Errorf("Updates = %d, want >= 2", stats.Updates)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	for range w.Updates() {
	}
}

func TestWatcher_BacksOffWhileUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	cfg := WatcherConfig{
		Client:            ClientConfig{URL: url, BufferSize: 1},
		ReconnectBaseWait: 10 * time.Millisecond,
		ReconnectMaxWait:  20 * time.Millisecond,
	}
	w := NewWatcher(cfg, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if stats := w.Stats(); stats.Connected || stats.Connects != 0 {
		t.Errorf("Stats = %+v, want no connections", stats)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	w := NewWatcher(WatcherConfig{Client: ClientConfig{URL: url, BufferSize: 1}}, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("first Stop failed: %v", err)
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if _, ok := <-w.Updates(); ok {
		t.Error("Updates still open after Stop")
	}
}

func TestDefaultConfigs(t *testing.T) {
	cc := DefaultClientConfig()
	if cc.PingTimeout <= 0 || cc.WriteTimeout <= 0 || cc.BufferSize < 1 {
		t.Errorf("DefaultClientConfig = %+v", cc)
	}

	wc := DefaultWatcherConfig()
	if wc.ReconnectBaseWait <= 0 || wc.ReconnectMaxWait < wc.ReconnectBaseWait {
		t.Errorf("DefaultWatcherConfig = %+v", wc)
	}
}

package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gobwas/ws"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/gateway"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/hub"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/repository"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/events"
)

// testGateway stands up the full path: miniredis broker, event source,
// hub and a real WebSocket endpoint.
type testGateway struct {
	mr      *miniredis.Miniredis
	manager *hub.Manager
	server  *httptest.Server
	cancel  context.CancelFunc
}

func startGateway(t *testing.T) *testGateway {
	t.Helper()
	return startGatewayWithConfig(t, config.GatewayConfig{
		IdleTimeout: 30 * time.Second,
		WriteWait:   5 * time.Second,
	})
}

func startGatewayWithConfig(t *testing.T, cfg config.GatewayConfig) *testGateway {
	t.Helper()
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	manager := hub.NewManager(logger)
	source := repository.NewRedisEventSource(rdb, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go source.Run(ctx, manager.HandleBrokerMessage)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		client := gateway.NewClient(conn, manager, cfg, logger)
		manager.Register(client)
		client.Start()
	})
	server := httptest.NewServer(mux)

	tg := &testGateway{mr: mr, manager: manager, server: server, cancel: cancel}
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return tg
}

func (g *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// publish waits for the event source's subscription, then delivers the
// payload exactly once.
func (g *testGateway) publish(t *testing.T, payload string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if g.mr.Publish(events.Channel, payload) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("event source never subscribed")
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("frame is not JSON: %v (%s)", err, data)
	}
	return decoded
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func TestGatewayWelcomeAndEcho(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t)

	welcome := readFrame(t, conn)
	if welcome["type"] != "welcome" {
		t.Fatalf("expected welcome, got %v", welcome)
	}
	if welcome["connection_id"] != float64(1) {
		t.Errorf("expected connection_id 1, got %v", welcome["connection_id"])
	}

	send(t, conn, map[string]any{"type": "echo", "data": "hello"})
	echo := readFrame(t, conn)
	if echo["type"] != "echo_response" || echo["data"] != "hello" {
		t.Errorf("unexpected echo reply: %v", echo)
	}

	send(t, conn, map[string]any{"type": "ping"})
	pong := readFrame(t, conn)
	if pong["type"] != "pong" {
		t.Errorf("expected pong, got %v", pong)
	}
}

func TestGatewayPlainTextEcho(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t)
	readFrame(t, conn) // welcome

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte("just text")); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Echo: just text" {
		t.Errorf("expected verbatim echo, got %q", data)
	}
}

func TestGatewayUnknownMessage(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t)
	readFrame(t, conn) // welcome

	send(t, conn, map[string]any{"type": "definitely-not-a-thing"})
	reply := readFrame(t, conn)
	if reply["type"] != "unknown_message" {
		t.Fatalf("expected unknown_message, got %v", reply)
	}
	original, ok := reply["original"].(map[string]any)
	if !ok || original["type"] != "definitely-not-a-thing" {
		t.Errorf("original payload must be echoed back, got %v", reply["original"])
	}
}

func TestGatewayBrokerEventDelivery(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t)
	readFrame(t, conn) // welcome

	g.publish(t, `{"type":"grid-started","symbol":"BTCUSDT","timestamp":1700000000000,"data":{"levels_count":2,"monitoring":true}}`)

	event := readFrame(t, conn)
	if event["type"] != "grid-started" || event["symbol"] != "BTCUSDT" {
		t.Fatalf("unexpected event: %v", event)
	}
	if event["status"] != "active" || event["levels_count"] != float64(2) {
		t.Errorf("enrichment missing: %v", event)
	}
	if event["message"] != "Grid trading started for BTCUSDT" {
		t.Errorf("unexpected message %q", event["message"])
	}
}

func TestGatewaySymbolFilteredDelivery(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t)
	readFrame(t, conn) // welcome

	send(t, conn, map[string]any{
		"type":    "subscribe",
		"channel": "grid-trade",
		"symbols": []string{"BTCUSDT"},
	})
	result := readFrame(t, conn)
	if result["type"] != "subscription_result" || result["result"] != true {
		t.Fatalf("subscription failed: %v", result)
	}

	// The ETHUSDT event must be filtered; the BTCUSDT one must arrive
	// next on the wire.
	g.publish(t, `{"type":"grid-level-triggered","symbol":"ETHUSDT","timestamp":1,"data":{"level_index":0,"side":"sell","status":"triggered"}}`)
	g.publish(t, `{"type":"grid-level-triggered","symbol":"BTCUSDT","timestamp":2,"data":{"level_index":1,"side":"buy","status":"triggered"}}`)

	event := readFrame(t, conn)
	if event["symbol"] != "BTCUSDT" {
		t.Fatalf("symbol filter leaked: %v", event)
	}
	if event["level_index"] != float64(1) || event["side"] != "buy" {
		t.Errorf("unexpected trigger payload: %v", event)
	}
}

func TestGatewayIdleConnectionGetsKeepalivePing(t *testing.T) {
	g := startGatewayWithConfig(t, config.GatewayConfig{
		IdleTimeout: 50 * time.Millisecond,
		WriteWait:   5 * time.Second,
	})
	conn := g.dial(t)
	readFrame(t, conn) // welcome

	// Stay silent past the idle timeout: the server must ping, not
	// disconnect.
	ping := readFrame(t, conn)
	if ping["type"] != "ping" {
		t.Fatalf("expected keepalive ping, got %v", ping)
	}

	// The connection is still usable afterwards
	send(t, conn, map[string]any{"type": "echo", "data": "still here"})
	for {
		frame := readFrame(t, conn)
		if frame["type"] == "ping" {
			continue
		}
		if frame["type"] != "echo_response" || frame["data"] != "still here" {
			t.Fatalf("unexpected frame after keepalive: %v", frame)
		}
		break
	}
}

func TestGatewayBroadcastTestReachesAllClients(t *testing.T) {
	g := startGateway(t)
	first := g.dial(t)
	second := g.dial(t)
	readFrame(t, first)  // welcome
	readFrame(t, second) // welcome

	send(t, first, map[string]any{"type": "broadcast_test", "message": "fan out"})

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		if frame["type"] != "test_broadcast" || frame["message"] != "fan out" {
			t.Errorf("unexpected broadcast frame: %v", frame)
		}
	}
}

package hub

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/protocol"
)

// ClientInterface is a live connection as the manager sees it. Send
// errors mean the connection is dead and must leave the registry.
type ClientInterface interface {
	ID() string
	SendJSON(v interface{}) error
	SendText(text string) error
	Close()
}

// Subscription is one connection's delivery filter.
type Subscription struct {
	Channels map[string]bool
	Symbols  map[string]bool
}

// Manager owns the connection registry and subscription map. All
// mutation and broadcast iteration is serialized under one mutex so a
// removed connection can never be used by a concurrent broadcast.
type Manager struct {
	mu          sync.RWMutex
	connections map[ClientInterface]*Subscription
	connCount   int
	logger      *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[ClientInterface]*Subscription),
		logger:      logger,
	}
}

// Register adds a connection and sends the welcome frame.
func (m *Manager) Register(client ClientInterface) {
	m.mu.Lock()
	m.connCount++
	id := m.connCount
	m.connections[client] = &Subscription{
		Channels: make(map[string]bool),
		Symbols:  make(map[string]bool),
	}
	total := len(m.connections)
	m.mu.Unlock()

	m.logger.Info("Client connected", zap.String("client", client.ID()), zap.Int("total", total))

	if err := client.SendJSON(protocol.Welcome{
		Type:         "welcome",
		Message:      "Connected to WebSocket server",
		ConnectionID: id,
	}); err != nil {
		m.Unregister(client)
	}
}

// Unregister drops a connection and discards its subscription record.
// Unregistering an unknown connection is a no-op.
func (m *Manager) Unregister(client ClientInterface) {
	m.mu.Lock()
	_, known := m.connections[client]
	delete(m.connections, client)
	total := len(m.connections)
	m.mu.Unlock()

	if known {
		client.Close()
		m.logger.Info("Client disconnected", zap.String("client", client.ID()), zap.Int("total", total))
	}
}

// HandleMessage dispatches one inbound frame. Non-JSON text is echoed
// verbatim; unknown types get an unknown_message reply. Protocol
// errors never close the connection.
func (m *Manager) HandleMessage(client ClientInterface, raw []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		if err := client.SendText("Echo: " + string(raw)); err != nil {
			m.Unregister(client)
		}
		return
	}

	m.logger.Debug("Handling message", zap.String("type", msg.Type))

	switch msg.Type {
	case protocol.TypePing:
		m.reply(client, protocol.Pong{Type: "pong", Timestamp: now()})

	case protocol.TypePong:
		// keepalive answer, nothing to do

	case protocol.TypeEcho:
		m.reply(client, protocol.EchoResponse{Type: "echo_response", Data: msg.Data, Timestamp: now()})

	case protocol.TypeBroadcastTest:
		message := msg.Message
		if message == "" {
			message = "Test broadcast"
		}
		payload, _ := json.Marshal(protocol.TestBroadcast{Type: "test_broadcast", Message: message, Timestamp: now()})
		m.BroadcastEvent(payload, "")

	case protocol.TypeSubscribe:
		channel := msg.Channel
		if channel == "" {
			channel = "default"
		}
		m.addSubscription(client, channel, msg.Symbols)
		m.reply(client, protocol.SubscriptionResult{
			Type:    "subscription_result",
			Channel: channel,
			Symbols: msg.Symbols,
			Result:  true,
			Message: fmt.Sprintf("Subscribed to %s for symbols: %v", channel, msg.Symbols),
		})

	case protocol.TypeUnsubscribe:
		channel := msg.Channel
		if channel == "" {
			channel = "default"
		}
		m.removeSubscription(client, channel)
		m.reply(client, protocol.UnsubscriptionResult{
			Type:    "unsubscription_result",
			Channel: channel,
			Result:  true,
			Message: fmt.Sprintf("Unsubscribed from %s", channel),
		})

	default:
		m.reply(client, protocol.UnknownMessage{Type: "unknown_message", Original: raw, Timestamp: now()})
	}
}

func (m *Manager) reply(client ClientInterface, v interface{}) {
	if err := client.SendJSON(v); err != nil {
		m.Unregister(client)
	}
}

func (m *Manager) addSubscription(client ClientInterface, channel string, symbols []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.connections[client]
	if !ok {
		return
	}
	sub.Channels[channel] = true
	for _, symbol := range symbols {
		sub.Symbols[strings.ToUpper(strings.TrimSpace(symbol))] = true
	}
	m.logger.Info("Client subscribed", zap.String("channel", channel), zap.Strings("symbols", symbols))
}

func (m *Manager) removeSubscription(client ClientInterface, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.connections[client]; ok {
		delete(sub.Channels, channel)
		m.logger.Info("Client unsubscribed", zap.String("channel", channel))
	}
}

// shouldDeliver applies the delivery filter; first matching rule wins.
// Net effect: broadcast to all, except when a connection declares a
// symbol allow-list and the event's symbol falls outside it.
func shouldDeliver(sub *Subscription, eventSymbol string) bool {
	if len(sub.Channels) == 0 && len(sub.Symbols) == 0 {
		return true
	}
	if len(sub.Symbols) > 0 && eventSymbol != "" {
		return sub.Symbols[strings.ToUpper(eventSymbol)]
	}
	if sub.Channels[protocol.GridTradeChannel] {
		return true
	}
	if len(sub.Channels) > 0 {
		return true
	}
	return true
}

// BroadcastEvent delivers a payload to every connection passing the
// filter. A send failure removes only that connection and never stops
// the rest of the pass.
func (m *Manager) BroadcastEvent(payload []byte, eventSymbol string) {
	m.mu.RLock()
	targets := make([]ClientInterface, 0, len(m.connections))
	for client, sub := range m.connections {
		if shouldDeliver(sub, eventSymbol) {
			targets = append(targets, client)
		}
	}
	total := len(m.connections)
	m.mu.RUnlock()

	var failed []ClientInterface
	for _, client := range targets {
		if err := client.SendText(string(payload)); err != nil {
			m.logger.Warn("Broadcast send failed", zap.String("client", client.ID()), zap.Error(err))
			failed = append(failed, client)
		}
	}

	m.logger.Debug("Broadcast done",
		zap.Int("sent", len(targets)-len(failed)),
		zap.Int("connections", total))

	for _, client := range failed {
		m.Unregister(client)
	}
}

// HandleBrokerMessage processes one raw message from the events
// channel: parse, enrich per event type, fan out. Unparseable payloads
// are forwarded as-is.
func (m *Manager) HandleBrokerMessage(payload string) {
	var event rawEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		m.logger.Error("Error parsing broker message", zap.Error(err))
		m.BroadcastEvent([]byte(payload), "")
		return
	}

	m.logger.Info("Received broker event",
		zap.String("type", event.Type),
		zap.String("symbol", event.Symbol))

	formatted, err := json.Marshal(formatEvent(event))
	if err != nil {
		m.logger.Error("Error formatting event", zap.Error(err))
		return
	}

	m.BroadcastEvent(formatted, event.Symbol)
}

// ActiveConnections returns the live connection count.
func (m *Manager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// TotalConnections returns the lifetime connection counter.
func (m *Manager) TotalConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connCount
}

// Subscriptions returns a snapshot of per-connection filters for the
// debug endpoint.
func (m *Manager) Subscriptions() map[string]map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string][]string, len(m.connections))
	for client, sub := range m.connections {
		channels := make([]string, 0, len(sub.Channels))
		for ch := range sub.Channels {
			channels = append(channels, ch)
		}
		symbols := make([]string, 0, len(sub.Symbols))
		for s := range sub.Symbols {
			symbols = append(symbols, s)
		}
		out[client.ID()] = map[string][]string{"channels": channels, "symbols": symbols}
	}
	return out
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

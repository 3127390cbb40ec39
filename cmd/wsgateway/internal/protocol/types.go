package protocol

import "encoding/json"

// Inbound frame types, tagged by the "type" field.
const (
	TypePing          = "ping"
	TypePong          = "pong"
	TypeEcho          = "echo"
	TypeBroadcastTest = "broadcast_test"
	TypeSubscribe     = "subscribe"
	TypeUnsubscribe   = "unsubscribe"
)

// GridTradeChannel is the channel name grid events belong to.
const GridTradeChannel = "grid-trade"

// ClientMessage is an inbound JSON frame. Unknown types are answered
// with an UnknownMessage echo, never dropped silently.
type ClientMessage struct {
	Type    string   `json:"type"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Channel string   `json:"channel,omitempty"`
	Symbols []string `json:"symbols,omitempty"`
}

type Welcome struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	ConnectionID int    `json:"connection_id"`
}

type Ping struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type Pong struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

type EchoResponse struct {
	Type      string  `json:"type"`
	Data      any     `json:"data"`
	Timestamp float64 `json:"timestamp"`
}

type TestBroadcast struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Timestamp float64 `json:"timestamp"`
}

type SubscriptionResult struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
	Result  bool     `json:"result"`
	Message string   `json:"message"`
}

type UnsubscriptionResult struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Result  bool   `json:"result"`
	Message string `json:"message"`
}

type UnknownMessage struct {
	Type      string          `json:"type"`
	Original  json.RawMessage `json:"original"`
	Timestamp float64         `json:"timestamp"`
}

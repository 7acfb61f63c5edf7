package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type tags. Every frame on either endpoint is a JSON object tagged by
// a "type" field; this catalogue is the external contract with the connector
// and dashboard codebases.
const (
	TypeTradeCommand      = "TRADE_COMMAND"
	TypeTradeOpen         = "TRADE_OPEN"
	TypeTradeClose        = "TRADE_CLOSE"
	TypePing              = "PING"
	TypePong              = "PONG"
	TypeConnectionsStatus = "CONNECTIONS_STATUS"
	TypeError             = "ERROR"
	TypeStatus            = "STATUS"
	TypeTradeResult       = "TRADE_RESULT"
)

// Trade actions accepted in TRADE_COMMAND.
const (
	ActionBuy   = "BUY"
	ActionSell  = "SELL"
	ActionClose = "CLOSE"
)

// Errors
var (
	ErrUnknownAction  = errors.New("unknown trade action")
	ErrMissingSymbol  = errors.New("symbol is required")
	ErrMissingTicket  = errors.New("ticket is required for close")
	ErrMissingCommand = errors.New("command_id is required")
)

// envelope is used for fast type extraction.
type envelope struct {
	Type string `json:"type"`
}

// MessageType extracts the type tag without parsing the full payload.
func MessageType(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	if env.Type == "" {
		return "", errors.New("missing message type")
	}
	return env.Type, nil
}

// TradeCommand is the client→relay order request.
type TradeCommand struct {
	Type         string  `json:"type"`
	CommandID    string  `json:"command_id"`
	ConnectionID string  `json:"connection_id"`
	Action       string  `json:"action"` // BUY, SELL, CLOSE
	Symbol       string  `json:"symbol,omitempty"`
	Volume       float64 `json:"volume,omitempty"`
	Price        float64 `json:"price,omitempty"`
	StopLoss     float64 `json:"sl,omitempty"`
	TakeProfit   float64 `json:"tp,omitempty"`
	Ticket       int64   `json:"ticket,omitempty"`
}

// TradeOpen is the normalized relay→connector open order.
type TradeOpen struct {
	Type       string  `json:"type"`
	RequestID  string  `json:"request_id"`
	Symbol     string  `json:"symbol"`
	OrderType  string  `json:"order_type"` // BUY or SELL
	Volume     float64 `json:"volume,omitempty"`
	Price      float64 `json:"price,omitempty"`
	StopLoss   float64 `json:"sl,omitempty"`
	TakeProfit float64 `json:"tp,omitempty"`
}

// TradeClose is the normalized relay→connector close order.
type TradeClose struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id"`
	Ticket    int64   `json:"ticket"`
	Volume    float64 `json:"volume,omitempty"`
}

// StatusUpdate is the connector→relay terminal liveness report.
type StatusUpdate struct {
	Type         string `json:"type"`
	MT5Connected bool   `json:"mt5_connected"`
}

// ConnectionStatus is one entry of a CONNECTIONS_STATUS snapshot.
type ConnectionStatus struct {
	ConnectionID string `json:"connection_id"`
	Online       bool   `json:"online"`
	MT5Connected bool   `json:"mt5_connected"`
	BrokerName   string `json:"broker_name,omitempty"`
}

// ConnectionsStatus is the relay→client status snapshot.
type ConnectionsStatus struct {
	Type        string             `json:"type"`
	Connections []ConnectionStatus `json:"connections"`
}

// ErrorMessage is the relay→peer error reply. CommandID is set whenever the
// error can be correlated with a triggering command.
type ErrorMessage struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id,omitempty"`
	Error     string `json:"error"`
}

// NormalizeTradeCommand validates a trade command and renders the
// relay→connector frame. The client's command_id is carried through verbatim
// as request_id.
func NormalizeTradeCommand(cmd TradeCommand) ([]byte, error) {
	if cmd.CommandID == "" {
		return nil, ErrMissingCommand
	}

	switch cmd.Action {
	case ActionBuy, ActionSell:
		if cmd.Symbol == "" {
			return nil, ErrMissingSymbol
		}
		return json.Marshal(TradeOpen{
			Type:       TypeTradeOpen,
			RequestID:  cmd.CommandID,
			Symbol:     cmd.Symbol,
			OrderType:  cmd.Action,
			Volume:     cmd.Volume,
			Price:      cmd.Price,
			StopLoss:   cmd.StopLoss,
			TakeProfit: cmd.TakeProfit,
		})
	case ActionClose:
		if cmd.Ticket == 0 {
			return nil, ErrMissingTicket
		}
		return json.Marshal(TradeClose{
			Type:      TypeTradeClose,
			RequestID: cmd.CommandID,
			Ticket:    cmd.Ticket,
			Volume:    cmd.Volume,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

// Error renders an ERROR frame.
func Error(commandID, message string) []byte {
	data, _ := json.Marshal(ErrorMessage{
		Type:      TypeError,
		CommandID: commandID,
		Error:     message,
	})
	return data
}

// Pong renders a PONG frame.
func Pong() []byte {
	data, _ := json.Marshal(envelope{Type: TypePong})
	return data
}

// Snapshot renders a CONNECTIONS_STATUS frame. A nil entry slice marshals as
// an empty list, not null.
func Snapshot(entries []ConnectionStatus) []byte {
	if entries == nil {
		entries = []ConnectionStatus{}
	}
	data, _ := json.Marshal(ConnectionsStatus{
		Type:        TypeConnectionsStatus,
		Connections: entries,
	})
	return data
}

// Package gateway is the TCP ingress for the matching engine: it parses
// a small binary framing into core.Order submissions and translates
// core.Trade results back into execution reports.
package gateway

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"fenrir/internal/core"
)

var (
	ErrInvalidMessageType = errors.New("gateway: invalid message type")
	ErrMessageTooShort    = errors.New("gateway: message too short")
)

type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

type ReportMessageType uint8

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
)

type Message interface {
	GetType() MessageType
}

const (
	BaseMessageHeaderLen        = 2
	NewOrderMessageHeaderLen    = 2 + 4 + 8 + 8 + 1 + 1
	CancelOrderMessageHeaderLen = 4 + 16
)

// BaseMessage carries the common 2-byte type tag every message starts with.
type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// parseMessage strips the type tag and dispatches to the per-type parser.
func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	default:
		return nil, ErrInvalidMessageType
	}
}

// NewOrderMessage is a wire submission: symbol + order shape + the owning
// client's username, which the gateway resolves to a session for reports.
type NewOrderMessage struct {
	BaseMessage
	Symbol      string
	OrderType   core.OrderType
	Side        core.Side
	LimitPrice  float64
	Quantity    uint64
	UsernameLen uint8
	Username    string
}

// ToOrder builds the core.Order this message describes, given the numeric
// id the gateway mints for the engine (the wire protocol and client only
// ever see the gateway-minted UUID, see Server.registerOrder).
func (m *NewOrderMessage) ToOrder(orderID uint64) core.Order {
	return core.Order{
		OrderID:   orderID,
		Timestamp: uint64(time.Now().UnixNano()),
		Price:     m.LimitPrice,
		Quantity:  m.Quantity,
		Side:      m.Side,
		Type:      m.OrderType,
	}
}

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	if len(msg) < NewOrderMessageHeaderLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	m.OrderType = core.OrderType(binary.BigEndian.Uint16(msg[0:2]))
	m.Symbol = string(msg[2:6])
	m.LimitPrice = math.Float64frombits(binary.BigEndian.Uint64(msg[6:14]))
	m.Quantity = binary.BigEndian.Uint64(msg[14:22])
	m.Side = core.Side(msg[22])
	m.UsernameLen = msg[23]

	expectedLen := NewOrderMessageHeaderLen + int(m.UsernameLen)
	if len(msg) < expectedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	m.Username = string(msg[24 : 24+int(m.UsernameLen)])

	return m, nil
}

// CancelOrderMessage identifies a resting order by the UUID the gateway
// minted for it, which reaches the client in that order's execution reports.
type CancelOrderMessage struct {
	BaseMessage
	Symbol    string
	OrderUUID string
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	if len(msg) < CancelOrderMessageHeaderLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	m.Symbol = string(msg[0:4])
	m.OrderUUID = string(msg[4:20])
	return m, nil
}

// Report is an outbound execution or error report sent back over the wire.
type Report struct {
	MessageType     ReportMessageType
	Side            core.Side
	Timestamp       uint64
	Quantity        uint64
	Price           float64
	CounterpartyLen uint16
	ErrStrLen       uint32
	Symbol          string
	OrderUUID       string
	Err             string
	Counterparty    string
}

const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 4 + 16

// Serialize packs a Report into its wire form.
func (r *Report) Serialize() []byte {
	total := reportFixedHeaderLen + len(r.Err) + len(r.Counterparty)
	buf := make([]byte, total)

	buf[0] = byte(r.MessageType)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[2:10], r.Timestamp)
	binary.BigEndian.PutUint64(buf[10:18], r.Quantity)
	binary.BigEndian.PutUint64(buf[18:26], math.Float64bits(r.Price))
	binary.BigEndian.PutUint16(buf[26:28], r.CounterpartyLen)
	binary.BigEndian.PutUint32(buf[28:32], r.ErrStrLen)

	symbol := make([]byte, 4)
	copy(symbol, r.Symbol)
	copy(buf[32:36], symbol)

	orderUUID := make([]byte, 16)
	copy(orderUUID, r.OrderUUID)
	copy(buf[36:52], orderUUID)

	offset := reportFixedHeaderLen
	if r.ErrStrLen > 0 {
		copy(buf[offset:], r.Err)
		offset += int(r.ErrStrLen)
	}
	if r.CounterpartyLen > 0 {
		copy(buf[offset:], r.Counterparty)
	}
	return buf
}

// newErrorReport builds the wire report sent back when handling a message
// fails.
func newErrorReport(err error) []byte {
	errStr := err.Error()
	report := Report{
		MessageType: ErrorReport,
		Timestamp:   uint64(time.Now().UnixNano()),
		ErrStrLen:   uint32(len(errStr)),
		Err:         errStr,
	}
	return report.Serialize()
}

// newExecutionReport builds one side's execution report for a trade: qty,
// price, and the counterparty's identity, from that side's point of view.
func newExecutionReport(symbol string, side core.Side, orderUUID string, qty uint64, price float64, counterpartyUUID string) []byte {
	r := Report{
		MessageType:     ExecutionReport,
		Side:            side,
		Timestamp:       uint64(time.Now().UnixNano()),
		Quantity:        qty,
		Price:           price,
		Symbol:          symbol,
		OrderUUID:       orderUUID,
		CounterpartyLen: uint16(len(counterpartyUUID)),
		Counterparty:    counterpartyUUID,
	}
	return r.Serialize()
}

package gateway

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/core"
)

func buildNewOrderWire(orderType core.OrderType, symbol string, price float64, qty uint64, side core.Side, username string) []byte {
	buf := make([]byte, NewOrderMessageHeaderLen+len(username))
	binary.BigEndian.PutUint16(buf[0:2], uint16(orderType))
	copy(buf[2:6], symbol)
	binary.BigEndian.PutUint64(buf[6:14], math.Float64bits(price))
	binary.BigEndian.PutUint64(buf[14:22], qty)
	buf[22] = byte(side)
	buf[23] = uint8(len(username))
	copy(buf[24:], username)
	return buf
}

func TestParseNewOrder_RoundTrip(t *testing.T) {
	wire := buildNewOrderWire(core.Limit, "AAPL", 101.50, 200, core.Sell, "alice")

	m, err := parseNewOrder(wire)
	require.NoError(t, err)

	assert.Equal(t, core.Limit, m.OrderType)
	assert.Equal(t, "AAPL", m.Symbol)
	assert.InDelta(t, 101.50, m.LimitPrice, 1e-9)
	assert.Equal(t, uint64(200), m.Quantity)
	assert.Equal(t, core.Sell, m.Side)
	assert.Equal(t, "alice", m.Username)
}

func TestParseNewOrder_TooShortForUsername(t *testing.T) {
	wire := buildNewOrderWire(core.Limit, "AAPL", 100, 1, core.Buy, "bob")
	truncated := wire[:len(wire)-1]

	_, err := parseNewOrder(truncated)
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestParseCancelOrder_RoundTrip(t *testing.T) {
	buf := make([]byte, CancelOrderMessageHeaderLen)
	copy(buf[0:4], "AAPL")
	copy(buf[4:20], "order-uuid-12345") // exactly 16 bytes, the wire field width

	m, err := parseCancelOrder(buf)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", m.Symbol)
	assert.Equal(t, "order-uuid-12345", m.OrderUUID)
}

func TestParseMessage_DispatchesByType(t *testing.T) {
	body := buildNewOrderWire(core.Market, "MSFT", 0, 50, core.Buy, "carol")
	wire := make([]byte, BaseMessageHeaderLen+len(body))
	binary.BigEndian.PutUint16(wire[0:2], uint16(NewOrder))
	copy(wire[2:], body)

	msg, err := parseMessage(wire)
	require.NoError(t, err)
	require.Equal(t, NewOrder, msg.GetType())

	nom, ok := msg.(NewOrderMessage)
	require.True(t, ok)
	assert.Equal(t, "MSFT", nom.Symbol)
}

func TestParseMessage_UnknownType(t *testing.T) {
	wire := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(wire[0:2], 99)

	_, err := parseMessage(wire)
	assert.ErrorIs(t, err, ErrInvalidMessageType)
}

func TestReportSerialize_RoundTripFields(t *testing.T) {
	r := Report{
		MessageType:     ExecutionReport,
		Side:            core.Buy,
		Timestamp:       12345,
		Quantity:        400,
		Price:           103.00,
		CounterpartyLen: 3,
		Symbol:          "AAPL",
		OrderUUID:       "order-uuid-123456",
		Counterparty:    "bob",
	}
	buf := r.Serialize()

	assert.Equal(t, byte(ExecutionReport), buf[0])
	assert.Equal(t, byte(core.Buy), buf[1])
	assert.Equal(t, uint64(400), binary.BigEndian.Uint64(buf[10:18]))
	assert.InDelta(t, 103.00, math.Float64frombits(binary.BigEndian.Uint64(buf[18:26])), 1e-9)
	assert.Equal(t, "AAPL", string(buf[32:36]))
	assert.Equal(t, "bob", string(buf[reportFixedHeaderLen:]))
}

// Command client is a minimal CLI exercising the gateway's wire protocol:
// place limit/market orders, cancel by UUID, or request a book log, then
// print execution/error reports as they arrive.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"fenrir/internal/core"
	"fenrir/internal/gateway"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the gateway")
	owner := flag.String("owner", "", "owner username (required)")
	action := flag.String("action", "place", "action to perform: place, cancel, log")

	symbol := flag.String("symbol", "AAPL", "symbol (max 4 chars)")
	sideStr := flag.String("side", "buy", "order side: buy or sell")
	typeStr := flag.String("type", "limit", "order type: limit or market")
	price := flag.Float64("price", 100.0, "limit price")
	qtyStr := flag.String("qty", "10", "quantity or comma-separated list")

	uuid := flag.String("uuid", "", "uuid of the order to cancel")

	flag.Parse()

	if *owner == "" {
		fmt.Println("error: -owner is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := core.Buy
	if strings.EqualFold(*sideStr, "sell") {
		side = core.Sell
	}
	orderType := core.Limit
	if strings.EqualFold(*typeStr, "market") {
		orderType = core.Market
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			if err := sendPlaceOrder(conn, *owner, orderType, *symbol, *price, qty, side); err != nil {
				log.Printf("failed to place order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %s %d @ %.2f\n", strings.ToUpper(*sideStr), *symbol, qty, *price)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		if *uuid == "" {
			log.Fatal("error: -uuid is required for cancel")
		}
		if err := sendCancelOrder(conn, *symbol, *uuid); err != nil {
			log.Printf("failed to send cancel: %v", err)
		} else {
			fmt.Printf("-> sent cancel for %s\n", *uuid)
		}
	case "log":
		if err := sendLogBook(conn); err != nil {
			log.Printf("failed to send log request: %v", err)
		}
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (ctrl-c to exit)")
	select {}
}

func parseQuantities(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

func sendPlaceOrder(conn net.Conn, owner string, orderType core.OrderType, symbol string, price float64, qty uint64, side core.Side) error {
	usernameLen := len(owner)
	total := gateway.BaseMessageHeaderLen + gateway.NewOrderMessageHeaderLen + usernameLen
	buf := make([]byte, total)

	binary.BigEndian.PutUint16(buf[0:2], uint16(gateway.NewOrder))
	binary.BigEndian.PutUint16(buf[2:4], uint16(orderType))

	symbolBytes := make([]byte, 4)
	copy(symbolBytes, symbol)
	copy(buf[4:8], symbolBytes)

	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(price))
	binary.BigEndian.PutUint64(buf[16:24], qty)
	buf[24] = byte(side)
	buf[25] = uint8(usernameLen)
	copy(buf[26:], owner)

	_, err := conn.Write(buf)
	return err
}

func sendCancelOrder(conn net.Conn, symbol, orderUUID string) error {
	id, err := uuid.Parse(orderUUID)
	if err != nil {
		return fmt.Errorf("invalid -uuid %q: %w", orderUUID, err)
	}

	buf := make([]byte, gateway.BaseMessageHeaderLen+gateway.CancelOrderMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(gateway.CancelOrder))

	symbolBytes := make([]byte, 4)
	copy(symbolBytes, symbol)
	copy(buf[2:6], symbolBytes)
	copy(buf[6:22], id[:])

	_, err = conn.Write(buf)
	return err
}

func sendLogBook(conn net.Conn) error {
	buf := make([]byte, gateway.BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(gateway.LogBook))
	_, err := conn.Write(buf)
	return err
}

// reportFixedHeaderLen matches gateway.Report.Serialize's fixed portion.
const reportFixedHeaderLen = 1 + 1 + 8 + 8 + 8 + 2 + 4 + 4 + 16

func readReports(conn net.Conn) {
	for {
		header := make([]byte, reportFixedHeaderLen)
		if _, err := io.ReadFull(conn, header); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		msgType := gateway.ReportMessageType(header[0])
		side := core.Side(header[1])
		qty := binary.BigEndian.Uint64(header[10:18])
		price := math.Float64frombits(binary.BigEndian.Uint64(header[18:26]))
		counterpartyLen := binary.BigEndian.Uint16(header[26:28])
		errStrLen := binary.BigEndian.Uint32(header[28:32])
		symbol := strings.TrimRight(string(header[32:36]), "\x00")
		orderUUID, uuidErr := uuid.FromBytes(header[36:52])

		varLen := int(counterpartyLen) + int(errStrLen)
		var varBuf []byte
		if varLen > 0 {
			varBuf = make([]byte, varLen)
			if _, err := io.ReadFull(conn, varBuf); err != nil {
				log.Printf("error reading report body: %v", err)
				return
			}
		}

		if msgType == gateway.ErrorReport {
			fmt.Printf("\n[ERROR] %s\n", string(varBuf[:errStrLen]))
			continue
		}

		counterparty := string(varBuf[errStrLen:])
		uuidStr := "<invalid>"
		if uuidErr == nil {
			uuidStr = orderUUID.String()
		}
		fmt.Printf("\n[EXECUTION] %s %s | qty: %d | price: %.2f | vs: %s | uuid: %s\n",
			side, symbol, qty, price, counterparty, uuidStr)
	}
}

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/core"
	"fenrir/internal/workerpool"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Second
)

var (
	ErrImproperConversion = errors.New("gateway: improper task conversion")
	ErrUnknownOrder       = errors.New("gateway: unknown order uuid")
	ErrClientDoesNotExist = errors.New("gateway: client session does not exist")
)

// clientSession is one connected client's TCP session plus its identity.
type clientSession struct {
	conn  net.Conn
	owner string
}

// clientMessage links a parsed wire message to the connection it arrived on.
type clientMessage struct {
	clientAddress string
	message       Message
}

// orderRecord is what the gateway remembers about an order it has placed,
// so a later fill can be reported back by symbol and the order's
// gateway-minted UUID rather than the engine's internal uint64 id.
type orderRecord struct {
	uuid   string
	owner  string
	symbol string
}

// Server is the TCP front door to a core.Engine: it frames wire messages,
// assigns engine-internal ids, and turns core.Trade results into
// execution reports written back to both counterparties.
type Server struct {
	address string
	port    int
	engine  *core.Engine
	pool    workerpool.Pool

	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	ordersMu  sync.Mutex
	orders    map[uint64]orderRecord
	byUUID    map[string]uint64
	nextOrder atomic.Uint64

	messages chan clientMessage
}

// New returns a gateway Server fronting engine on address:port.
func New(address string, port int, engine *core.Engine) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   engine,
		pool:     workerpool.New(defaultNWorkers),
		sessions: make(map[string]clientSession),
		orders:   make(map[uint64]orderRecord),
		byUUID:   make(map[string]uint64),
		messages: make(chan clientMessage, workerpool.DefaultTaskChanSize),
	}
}

// Shutdown tears down the server's context, signalling all supervised
// goroutines to stop.
func (s *Server) Shutdown() {
	log.Info().Msg("gateway: shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the listener, worker pool, and session handler, and blocks
// until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("gateway: unable to start listener")
		return
	}
	defer listener.Close()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("gateway: running")

	// Closing the listener unblocks a pending Accept once ctx is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Msg("gateway: error accepting client")
				continue
			}
			log.Info().Str("address", conn.RemoteAddr().String()).Msg("gateway: new client")
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler drains parsed messages and routes them to the engine.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.messages:
			if err := s.handleMessage(msg); err != nil {
				log.Error().Err(err).Str("client", msg.clientAddress).Msg("gateway: error handling message")
				s.reportError(msg.clientAddress, err)
			}
		}
	}
}

// handleConnection reads one message off conn, parses it, and forwards it
// to the session handler, then re-enqueues the connection so its next
// message is read. On a deadline, read or parse error the error is logged
// and the connection is closed instead of being re-enqueued.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Msg("gateway: failed setting deadline")
		conn.Close()
		return nil
	}

	select {
	case <-t.Dying():
		conn.Close()
		return nil
	default:
	}

	buf := make([]byte, maxRecvSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Debug().Err(err).Str("address", conn.RemoteAddr().String()).Msg("gateway: connection closed")
		s.deleteSession(conn.RemoteAddr().String())
		conn.Close()
		return nil
	}

	message, err := parseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("gateway: parse error")
		conn.Close()
		return nil
	}

	s.addSession(conn)
	s.messages <- clientMessage{clientAddress: conn.RemoteAddr().String(), message: message}
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) handleMessage(msg clientMessage) error {
	switch msg.message.GetType() {
	case NewOrder:
		nom, ok := msg.message.(NewOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleNewOrder(msg.clientAddress, nom)
	case CancelOrder:
		com, ok := msg.message.(CancelOrderMessage)
		if !ok {
			return ErrInvalidMessageType
		}
		return s.handleCancel(com)
	case LogBook:
		log.Info().Msg("gateway: log book requested")
		return nil
	case Heartbeat:
		return nil
	default:
		return ErrInvalidMessageType
	}
}

func (s *Server) handleNewOrder(clientAddress string, nom NewOrderMessage) error {
	orderID := s.nextOrder.Add(1)
	id := uuid.New()
	clientUUID := string(id[:]) // raw 16 bytes, matches the wire field width

	s.registerOrder(orderID, orderRecord{uuid: clientUUID, owner: nom.Username, symbol: nom.Symbol})
	s.setOwner(clientAddress, nom.Username)

	order := nom.ToOrder(orderID)
	trades, err := s.engine.Submit(nom.Symbol, order)
	if err != nil {
		s.unregisterOrder(orderID)
		return fmt.Errorf("gateway: submit rejected: %w", err)
	}

	for _, trade := range trades {
		s.reportTrade(nom.Symbol, trade)
	}
	return nil
}

func (s *Server) handleCancel(com CancelOrderMessage) error {
	orderID, ok := s.lookupByUUID(com.OrderUUID)
	if !ok {
		return ErrUnknownOrder
	}
	s.engine.Cancel(com.Symbol, orderID)
	s.unregisterOrder(orderID)
	return nil
}

// reportTrade writes one execution report to each counterparty's
// connection, from that counterparty's own point of view.
func (s *Server) reportTrade(symbol string, trade core.Trade) {
	buy := s.lookupOrder(trade.BuyOrderID)
	sell := s.lookupOrder(trade.SellOrderID)

	if buy.owner != "" {
		report := newExecutionReport(symbol, core.Buy, buy.uuid, uint64(trade.Quantity), trade.Price, sell.uuid)
		s.writeToOwner(buy.owner, report)
	}
	if sell.owner != "" {
		report := newExecutionReport(symbol, core.Sell, sell.uuid, uint64(trade.Quantity), trade.Price, buy.uuid)
		s.writeToOwner(sell.owner, report)
	}
}

func (s *Server) reportError(clientAddress string, cause error) {
	s.sessionsMu.Lock()
	session, ok := s.sessions[clientAddress]
	s.sessionsMu.Unlock()
	if !ok {
		return
	}
	if _, err := session.conn.Write(newErrorReport(cause)); err != nil {
		log.Error().Err(err).Str("address", clientAddress).Msg("gateway: failed writing error report")
	}
}

func (s *Server) writeToOwner(owner string, payload []byte) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	for _, session := range s.sessions {
		if session.owner == owner {
			if _, err := session.conn.Write(payload); err != nil {
				log.Error().Err(err).Str("owner", owner).Msg("gateway: failed writing report")
			}
		}
	}
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	address := conn.RemoteAddr().String()
	if _, ok := s.sessions[address]; !ok {
		s.sessions[address] = clientSession{conn: conn}
	}
}

func (s *Server) setOwner(address, owner string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	session := s.sessions[address]
	session.owner = owner
	s.sessions[address] = session
}

func (s *Server) deleteSession(address string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, address)
}

func (s *Server) registerOrder(orderID uint64, rec orderRecord) {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	s.orders[orderID] = rec
	s.byUUID[rec.uuid] = orderID
}

func (s *Server) unregisterOrder(orderID uint64) {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	if rec, ok := s.orders[orderID]; ok {
		delete(s.byUUID, rec.uuid)
	}
	delete(s.orders, orderID)
}

func (s *Server) lookupOrder(orderID uint64) orderRecord {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	return s.orders[orderID]
}

func (s *Server) lookupByUUID(orderUUID string) (uint64, bool) {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	id, ok := s.byUUID[orderUUID]
	return id, ok
}

package remote

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/nm-morais/go-boxtimer/pkg/engine"
	"github.com/nm-morais/go-boxtimer/pkg/errors"
	"github.com/nm-morais/go-boxtimer/pkg/event"
	"github.com/nm-morais/go-boxtimer/pkg/logs"
	"github.com/panjf2000/ants"
	log "github.com/sirupsen/logrus"
	"github.com/smallnest/goframe"
)

const serverCaller = "EventStreamServer"

// DefaultPoolSize bounds the number of concurrent frame writes.
const DefaultPoolSize = 16

var (
	serverEncoderConfig = goframe.EncoderConfig{
		ByteOrder:                       binary.BigEndian,
		LengthFieldLength:               4,
		LengthAdjustment:                0,
		LengthIncludesLengthFieldLength: false,
	}

	serverDecoderConfig = goframe.DecoderConfig{
		ByteOrder:           binary.BigEndian,
		LengthFieldOffset:   0,
		LengthFieldLength:   4,
		LengthAdjustment:    0,
		InitialBytesToStrip: 4,
	}
)

// Server broadcasts every engine event to connected TCP clients as a
// length-prefixed JSON frame. Frame writes go through a worker pool so a
// slow or dead client never stalls the tick path; connections whose
// writes fail are dropped.
type Server struct {
	eng    *engine.Engine
	pool   *ants.Pool
	logger *log.Logger

	connsMutex *sync.Mutex
	conns      map[int]goframe.FrameConn
	nextConnID int

	listener      net.Listener
	listenerToken int
	done          chan struct{}
	closeOnce     sync.Once
}

func NewServer(eng *engine.Engine, poolSize int) (*Server, errors.Error) {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, errors.NonFatalError(errors.ListenFailure, fmt.Sprintf("worker pool: %v", err), serverCaller)
	}
	return &Server{
		eng:        eng,
		pool:       pool,
		logger:     logs.NewLogger(serverCaller),
		connsMutex: &sync.Mutex{},
		conns:      map[int]goframe.FrameConn{},
		done:       make(chan struct{}),
	}, nil
}

// Listen binds the given TCP address, starts accepting clients and
// registers the server on the engine's event stream.
func (s *Server) Listen(addr string) errors.Error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.NonFatalError(errors.ListenFailure, fmt.Sprintf("listen %s: %v", addr, err), serverCaller)
	}
	s.listener = listener
	s.listenerToken = s.eng.AddEventListener(s.broadcast)
	go s.acceptLoop()
	s.logger.Infof("broadcasting timer events on %s", listener.Addr())
	return nil
}

// Addr returns the bound listen address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnCount returns the number of connected clients.
func (s *Server) ConnCount() int {
	s.connsMutex.Lock()
	defer s.connsMutex.Unlock()
	return len(s.conns)
}

// Close unregisters from the engine, stops accepting and tears down
// every client connection. Idempotent.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.eng.RemoveEventListener(s.listenerToken)
		if s.listener != nil {
			s.listener.Close()
		}
		s.connsMutex.Lock()
		for id, fc := range s.conns {
			fc.Close()
			delete(s.conns, id)
		}
		s.connsMutex.Unlock()
		s.pool.Release()
	})
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Errorf("accept failed: %v", err)
			}
			return
		}
		frameConn := goframe.NewLengthFieldBasedFrameConn(serverEncoderConfig, serverDecoderConfig, conn)
		s.connsMutex.Lock()
		// A conn accepted just before Close must not land in the map
		// after the close-time sweep.
		select {
		case <-s.done:
			s.connsMutex.Unlock()
			frameConn.Close()
			return
		default:
		}
		s.nextConnID++
		s.conns[s.nextConnID] = frameConn
		s.connsMutex.Unlock()
		s.logger.Infof("client connected: %s", conn.RemoteAddr())
	}
}

// broadcast runs on the engine goroutine; the actual writes are handed
// to the pool so the tick path never blocks on a socket.
func (s *Server) broadcast(ev event.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Errorf("encode %s event: %v", ev.Type, err)
		return
	}
	s.connsMutex.Lock()
	targets := make(map[int]goframe.FrameConn, len(s.conns))
	for id, fc := range s.conns {
		targets[id] = fc
	}
	s.connsMutex.Unlock()

	for id, fc := range targets {
		connID, frameConn := id, fc
		submitErr := s.pool.Submit(func() {
			if writeErr := frameConn.WriteFrame(data); writeErr != nil {
				s.dropConn(connID, writeErr)
			}
		})
		if submitErr != nil {
			s.logger.Warnf("dropping frame for client %d: %v", connID, submitErr)
		}
	}
}

func (s *Server) dropConn(connID int, cause error) {
	s.connsMutex.Lock()
	frameConn, ok := s.conns[connID]
	if ok {
		delete(s.conns, connID)
	}
	s.connsMutex.Unlock()
	if ok {
		frameConn.Close()
		s.logger.Warnf("dropped client %d: %v", connID, cause)
	}
}

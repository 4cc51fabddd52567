package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/CefBoud/kafkanet/broker"
	log "github.com/CefBoud/kafkanet/logging"
	"github.com/CefBoud/kafkanet/metrics"
	"github.com/CefBoud/kafkanet/protocol"
	"github.com/CefBoud/kafkanet/types"
)

// ErrServerClosed is returned by Serve after Shutdown
var ErrServerClosed = errors.New("server closed")

// acceptRetryDelay is how long the accept loop backs off after a failed Accept
const acceptRetryDelay = 10 * time.Millisecond

// Server accepts client connections and serves their requests against a Broker
type Server struct {
	Broker  *broker.Broker
	Config  *types.Configuration
	Metrics *metrics.Metrics

	mu         sync.Mutex
	listener   net.Listener
	admin      *http.Server
	conns      map[net.Conn]struct{}
	inShutdown bool
	wg         sync.WaitGroup
}

// New creates a Server. A nil m gets a fresh metrics registry.
func New(b *broker.Broker, config *types.Configuration, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		Broker:  b,
		Config:  config,
		Metrics: m,
		conns:   make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured broker address, starts the admin endpoint
// if an admin port is set, and serves until Shutdown
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.Config.BrokerHost, s.Config.BrokerPort))
	if err != nil {
		return fmt.Errorf("error starting server: %w", err)
	}
	if s.Config.AdminPort != 0 {
		if err := s.startAdmin(fmt.Sprintf("%s:%d", s.Config.BrokerHost, s.Config.AdminPort)); err != nil {
			listener.Close()
			return err
		}
	}
	return s.Serve(listener)
}

func (s *Server) startAdmin(addr string) error {
	adminListener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error starting admin endpoint: %w", err)
	}
	s.mu.Lock()
	s.admin = &http.Server{Handler: s.AdminHandler(), ReadHeaderTimeout: 5 * time.Second}
	admin := s.admin
	s.mu.Unlock()

	log.Info("Admin endpoint is listening on %v", adminListener.Addr())
	go func() {
		if err := admin.Serve(adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin endpoint stopped: %v", err)
		}
	}()
	return nil
}

// Serve accepts connections on listener, handling each one on its own goroutine
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.inShutdown {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	s.listener = listener
	s.mu.Unlock()

	log.Info("Server is listening on %v...", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			log.Error("Error accepting connection: %v", err)
			time.Sleep(acceptRetryDelay)
			continue
		}
		if !s.trackConn(conn) {
			conn.Close()
			return ErrServerClosed
		}
		go s.HandleConnection(conn)
	}
}

// Addr returns the listener's address, or nil before Serve is called
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inShutdown
}

func (s *Server) trackConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inShutdown {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.Metrics.ConnectionOpened()
	return true
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.Metrics.ConnectionClosed()
	s.wg.Done()
}

// HandleConnection serves requests from a client connection until it is closed
func (s *Server) HandleConnection(conn net.Conn) {
	defer s.untrackConn(conn)
	defer conn.Close()
	connectionAddr := conn.RemoteAddr().String()
	connLog := log.Logger().Named("conn").With("remote", connectionAddr)
	connLog.Debug("connection established")

	for {
		req, err := protocol.ReadRequest(conn, s.maxRequestBytes())
		if err != nil {
			if errors.Is(err, protocol.ErrRequestTooLarge) {
				// the rest of the frame can't be skipped reliably, answer then hang up
				connLog.Warn("rejecting frame", "error", err)
				s.Metrics.RecordRequest(s.RequestDispatcher(req.Type).Name, err)
				if werr := protocol.WriteResponse(conn, protocol.NewErrorResponse(err)); werr != nil {
					connLog.Debug("failed to write error response", "error", werr)
				}
				break
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				connLog.Info("failed to read request", "error", err)
			}
			break
		}
		req.ConnectionAddress = connectionAddr

		response := s.handleRequest(req)
		if err := protocol.WriteResponse(conn, response); err != nil {
			connLog.Error("error writing to connection", "error", err)
			break
		}
	}
	connLog.Debug("connection closed")
}

func (s *Server) maxRequestBytes() uint32 {
	if s.Config == nil || s.Config.MaxRequestBytes == 0 {
		return protocol.DefaultMaxRequestBytes
	}
	return s.Config.MaxRequestBytes
}

// handleRequest runs the request's handler. Handler errors and panics become
// unsuccessful responses and never close the connection.
func (s *Server) handleRequest(req types.Request) (response protocol.Response) {
	handler := s.RequestDispatcher(req.Type)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error handling %v request: %v", handler.Name, r)
			log.Error("%v", err)
			s.Metrics.RecordRequest(handler.Name, err)
			response = protocol.NewErrorResponse(err)
		}
	}()
	log.Debug("Received %v request from %v | Length: %v", handler.Name, req.ConnectionAddress, req.Length)

	if handler.Handler == nil {
		err := fmt.Errorf("%w: %#02x", protocol.ErrUnknownRequestType, uint8(req.Type))
		s.Metrics.RecordRequest(handler.Name, err)
		return protocol.NewErrorResponse(err)
	}
	data, err := handler.Handler(req)
	s.Metrics.RecordRequest(handler.Name, err)
	if err != nil {
		log.Debug("%v request from %v failed: %v", handler.Name, req.ConnectionAddress, err)
		return protocol.NewErrorResponse(err)
	}
	if data == nil {
		return protocol.Response{Success: true}
	}
	response, err = protocol.NewDataResponse(data)
	if err != nil {
		return protocol.NewErrorResponse(err)
	}
	return response
}

// Shutdown stops accepting connections, closes the open ones and the admin
// endpoint, then waits for every connection handler to return or ctx to be done
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.inShutdown {
		s.mu.Unlock()
		return nil
	}
	s.inShutdown = true
	listener, admin := s.listener, s.admin
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	log.Info("Server shutting down...")
	var err error
	if listener != nil {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	if admin != nil {
		if aerr := admin.Shutdown(ctx); aerr != nil && err == nil {
			err = aerr
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

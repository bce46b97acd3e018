package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/exprd/internal/calc"
	"github.com/danmuck/exprd/internal/observability"
	"github.com/danmuck/exprd/internal/protocol/frame"
	"github.com/danmuck/exprd/internal/protocol/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Status is a point-in-time view of the service.
type Status struct {
	ServerID      string
	ListenAddr    string
	ActiveClients int64
	TotalClients  uint64
	Requests      uint64
	StartedAt     time.Time
}

// Service accepts framed expression requests and answers each one.
type Service struct {
	cfg ServiceConfig

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup

	slots *semaphore.Weighted

	addr          atomic.Value
	activeClients atomic.Int64
	totalClients  atomic.Uint64
	requests      atomic.Uint64
	startedAt     time.Time
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultServiceConfig().ListenAddr
	}
	if strings.TrimSpace(cfg.ServerID) == "" {
		cfg.ServerID = DefaultServiceConfig().ServerID
	}
	cfg.Limits = cfg.Limits.Normalize()
	cfg.Session = cfg.Session.WithDefaults()
	svc := &Service{
		cfg:       cfg,
		conns:     make(map[net.Conn]struct{}),
		startedAt: time.Now(),
	}
	if cfg.MaxConns > 0 {
		svc.slots = semaphore.NewWeighted(int64(cfg.MaxConns))
	}
	svc.addr.Store(cfg.ListenAddr)
	observability.RegisterMetrics()
	return svc
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) Status() Status {
	addr, _ := s.addr.Load().(string)
	return Status{
		ServerID:      s.cfg.ServerID,
		ListenAddr:    addr,
		ActiveClients: s.activeClients.Load(),
		TotalClients:  s.totalClients.Load(),
		Requests:      s.requests.Load(),
		StartedAt:     s.startedAt,
	}
}

// Run serves until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext listens on the configured address and serves until ctx ends.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.addr.Store(ln.Addr().String())
	log.Info().
		Str("node", s.cfg.ServerID).
		Str("addr", ln.Addr().String()).
		Bool("tls", s.cfg.Session.TLS.Enabled).
		Int("max_conns", s.cfg.MaxConns).
		Msg("server.Service.Run listening")

	adminErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		go func() {
			adminErr <- s.serveAdmin(ctx, addr)
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(ctx, ln)
	}()
	select {
	case err := <-serveErr:
		return err
	case err := <-adminErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

func (s *Service) listen() (net.Listener, error) {
	if !s.cfg.Session.TLS.Enabled {
		return net.Listen("tcp", s.cfg.ListenAddr)
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		return nil, err
	}
	return tls.Listen("tcp", s.cfg.ListenAddr, tlsCfg)
}

// Serve runs the accept loop on ln until ctx ends, then closes every tracked
// connection and waits for their workers to exit.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return err
	}
	s.addr.Store(ln.Addr().String())
	defer s.wg.Wait()
	defer ln.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
		s.closeAllConns()
	}()

	for {
		if s.slots != nil {
			if err := s.slots.Acquire(ctx, 1); err != nil {
				return nil
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			s.releaseSlot()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Warn().Err(err).Msg("server.Serve accept timeout")
				continue
			}
			return err
		}
		if !s.trackConn(ctx, conn) {
			_ = conn.Close()
			s.releaseSlot()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.releaseSlot()
			s.handleConn(conn)
		}()
	}
}

func (s *Service) releaseSlot() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

// handleConn serves one connection: read a frame, evaluate, write the
// response, repeat. Responses go out in request order.
func (s *Service) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)

	node := s.cfg.ServerID
	logger := observability.ConnLogger(log.Logger, node, uuid.NewString(), conn.RemoteAddr().String())
	active := s.activeClients.Add(1)
	s.totalClients.Add(1)
	observability.RecordConnOpened(node)
	logger.Info().Int64("active_clients", active).Msg("client connected")

	served := 0
	defer func() {
		remaining := s.activeClients.Add(-1)
		observability.RecordConnClosed(node)
		logger.Info().
			Int("requests", served).
			Int64("active_clients", remaining).
			Msg("client disconnected")
	}()

	if err := s.handshake(conn, logger); err != nil {
		logger.Warn().Err(err).Msg("server.handleConn tls handshake failed")
		observability.RecordFrameError(node, "tls_handshake")
		return
	}

	reader := bufio.NewReader(conn)
	for {
		if d := s.cfg.Session.ReadTimeout; d > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(d))
		}
		payload, err := frame.ReadFrame(reader, s.cfg.Limits)
		if err != nil {
			s.logReadEnd(logger, err)
			return
		}

		start := time.Now()
		line, outcome := calc.Respond(payload)
		observability.RecordEval(node, outcome.Label(), time.Since(start))
		s.requests.Add(1)
		if outcome.Err != nil {
			logger.Debug().Int("bytes", len(payload)).Err(outcome.Err).Msg("eval error")
		} else {
			logger.Debug().Int("bytes", len(payload)).Float64("value", outcome.Value).Msg("eval ok")
		}

		if d := s.cfg.Session.WriteTimeout; d > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(d))
		}
		// Limits bound inbound requests only; a response must always fit.
		if err := frame.WriteFrame(conn, []byte(line), frame.DefaultLimits()); err != nil {
			logger.Warn().Err(err).Msg("server.handleConn write response")
			observability.RecordFrameError(node, frame.ErrorKind(err))
			return
		}
		served++
	}
}

func (s *Service) logReadEnd(logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, frame.ErrPeerClosed), errors.Is(err, net.ErrClosed):
		return
	case frame.IsProtocolError(err):
		logger.Warn().Err(err).Msg("server.handleConn protocol violation")
	default:
		logger.Warn().Err(err).Msg("server.handleConn read failed")
	}
	observability.RecordFrameError(s.cfg.ServerID, frame.ErrorKind(err))
}

// handshake completes TLS up front so peer identity can be logged before the
// first frame.
func (s *Service) handshake(conn net.Conn, logger zerolog.Logger) error {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil
	}
	_ = tlsConn.SetDeadline(time.Now().Add(s.cfg.Session.ConnectTimeout))
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	_ = tlsConn.SetDeadline(time.Time{})
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) > 0 {
		logger.Info().Str("peer_identity", session.PeerIdentity(state.PeerCertificates[0])).Msg("tls peer authenticated")
	}
	return nil
}

func (s *Service) trackConn(ctx context.Context, conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

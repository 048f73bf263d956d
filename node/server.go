package node

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fzft/go-openset/db"
	"github.com/fzft/go-openset/log"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const (
	DefaultMaxClients = 1024
	TCPKeepAlive      = 15 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Options configures a Server.
type Options struct {
	Addr        string
	MetricsAddr string // empty disables the HTTP metrics endpoint
	MaxClients  int
	IdleTimeout time.Duration // 0 disables
	Version     string

	// Registry receives the server metrics. A private registry is created
	// when nil.
	Registry *prom.Registry
}

type serverStats struct {
	connections         atomic.Int64
	rejectedConnections atomic.Int64
	commands            atomic.Int64
	rejectedCommands    atomic.Int64
}

type Server struct {
	opts     Options
	pid      int
	db       *db.RedisDb
	commands map[string]*RedisCommand
	clients  *xsync.MapOf[string, *Client]
	registry *prom.Registry
	metrics  *Metrics
	stats    serverStats

	startTime time.Time
	listener  net.Listener
	ready     chan struct{}
	readyOnce sync.Once
	startErr  error
	wg        sync.WaitGroup
}

func NewServer(opts Options, rdb *db.RedisDb) *Server {
	if opts.MaxClients <= 0 {
		opts.MaxClients = DefaultMaxClients
	}
	if opts.Registry == nil {
		opts.Registry = prom.NewRegistry()
	}
	return &Server{
		opts:     opts,
		pid:      os.Getpid(),
		db:       rdb,
		commands: populateCommandTable(),
		clients:  xsync.NewMapOf[string, *Client](),
		registry: opts.Registry,
		metrics:  NewMetrics(opts.Registry, rdb),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the server is accepting connections or has failed to
// start, in which case StartErr reports why.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

func (s *Server) markReady(err error) {
	s.readyOnce.Do(func() {
		s.startErr = err
		close(s.ready)
	})
}

// StartErr returns the error that kept Run from serving, nil while starting
// or once serving.
func (s *Server) StartErr() error {
	select {
	case <-s.ready:
		return s.startErr
	default:
		return nil
	}
}

// Addr returns the bound listener address, or nil before Ready and when the
// server failed to start.
func (s *Server) Addr() net.Addr {
	select {
	case <-s.ready:
	default:
		return nil
	}
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) DB() *db.RedisDb {
	return s.db
}

func (s *Server) Registry() *prom.Registry {
	return s.registry
}

func (s *Server) lookupCommand(name string) *RedisCommand {
	return s.commands[strings.ToLower(name)]
}

// Run serves until ctx is cancelled, then closes the listener and every
// client connection and waits for the client goroutines to exit.
func (s *Server) Run(ctx context.Context) error {
	ln, err := newListenConfig().Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		log.Logger.Error("listen error", zap.String("addr", s.opts.Addr), zap.Error(err))
		s.markReady(err)
		return err
	}

	var metricsSrv *http.Server
	if s.opts.MetricsAddr != "" {
		metricsSrv, err = s.serveMetrics()
		if err != nil {
			ln.Close()
			s.markReady(err)
			return err
		}
	}

	s.listener = ln
	s.startTime = time.Now()
	s.markReady(nil)
	log.Logger.Info("listening", zap.String("addr", ln.Addr().String()),
		zap.Int("max_clients", s.opts.MaxClients))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		ln.Close()
	}()

	var errs MultiError
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			log.Logger.Error("accept error", zap.Error(err))
			errs = append(errs, err)
			break
		}
		s.accept(ctx, conn)
	}

	log.Logger.Info("shutting down server")
	errs = append(errs, s.shutdown(metricsSrv)...)
	return errs.ErrorOrNil()
}

func (s *Server) accept(ctx context.Context, conn net.Conn) {
	if s.clients.Size() >= s.opts.MaxClients {
		s.stats.rejectedConnections.Add(1)
		log.Logger.Warn("max number of clients reached", zap.String("addr", conn.RemoteAddr().String()))
		conn.Write(SharedMaxClientsErr)
		conn.Close()
		return
	}

	c := NewClient(s, conn)
	s.clients.Store(c.id, c)
	s.stats.connections.Add(1)
	s.metrics.ClientConnected()
	log.Logger.Debug("client connected", zap.String("client", c.id), zap.String("addr", c.RemoteAddr()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.freeClient(c)
		if err := c.serve(ctx); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Logger.Debug("client error", zap.String("client", c.id), zap.Error(err))
		}
	}()
}

func (s *Server) freeClient(c *Client) {
	s.clients.Delete(c.id)
	c.Close()
	s.metrics.ClientDisconnected()
	log.Logger.Debug("client disconnected", zap.String("client", c.id))
}

func (s *Server) serveMetrics() (*http.Server, error) {
	ln, err := net.Listen("tcp", s.opts.MetricsAddr)
	if err != nil {
		log.Logger.Error("metrics listen error", zap.String("addr", s.opts.MetricsAddr), zap.Error(err))
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", HTTPHandler(s.registry))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return srv, nil
}

func (s *Server) shutdown(metricsSrv *http.Server) MultiError {
	var errs MultiError

	s.clients.Range(func(id string, c *Client) bool {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		return true
	})
	s.wg.Wait()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

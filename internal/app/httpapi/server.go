package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/app/system"
	"github.com/R3E-Network/souschef/internal/logging"
)

var _ system.Service = (*Server)(nil)

const limiterCleanupInterval = time.Minute

// Server runs the API as a lifecycle service.
type Server struct {
	handler *handler
	root    http.Handler
	addr    string
	log     *logging.Logger

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewServer builds the server for application using its server settings.
func NewServer(application *app.Application, opts ...Option) *Server {
	cfg := application.Config().Server
	h := newHandler(application, opts...)
	return &Server{
		handler:         h,
		root:            h.root(),
		addr:            cfg.Addr,
		log:             h.log,
		readTimeout:     cfg.ReadTimeout,
		writeTimeout:    cfg.WriteTimeout,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

func (s *Server) Name() string { return "http-server" }

// Handler exposes the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.root }

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := &http.Server{
		Handler:           s.root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.readTimeout,
		WriteTimeout:      s.writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}
	s.srv = srv
	s.listener = ln
	s.cancel = cancel
	s.done = make(chan struct{})

	if s.handler.limiter != nil {
		go s.handler.limiter.RunCleanup(runCtx, limiterCleanupInterval)
	}
	go func(done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}(s.done)

	s.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
	return nil
}

// Stop drains in-flight requests within the shutdown timeout. Live streams
// are ended by cancelling their base context.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel, done := s.srv, s.cancel, s.done
	s.srv, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	cancel()
	if s.shutdownTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, s.shutdownTimeout)
		defer stop()
	}
	err := srv.Shutdown(ctx)
	<-done
	if s.handler.auditFile != nil {
		_ = s.handler.auditFile.Close()
	}
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

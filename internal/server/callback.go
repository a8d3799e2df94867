package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aarriolsal/spotify-nextcloud/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// DefaultAuthTimeout bounds how long [CallbackServer.Wait] waits for the browser redirect.
const DefaultAuthTimeout = 2 * time.Minute

// CallbackServer is a short-lived HTTP server that receives one OAuth redirect.
type CallbackServer struct {
	addr    string
	handler *OAuthHandler
	srv     *http.Server
	ln      net.Listener
	logger  *log.Logger
	errs    chan error
}

// NewCallbackServer serves handler on the host and port of cfg. Port 0 picks a free port.
func NewCallbackServer(cfg shared.ServerConfig, handler *OAuthHandler, logger *log.Logger) *CallbackServer {
	if logger == nil {
		logger = shared.NopLogger()
	}
	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	return &CallbackServer{
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		handler: handler,
		srv:     &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
		logger:  logger,
		errs:    make(chan error, 1),
	}
}

// Start binds the listener and serves in the background.
//
// Binding happens before Start returns, so the authorization URL can be opened right after.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Infof("starting OAuth server at %v", ln.Addr())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
	}()
	return nil
}

// Addr returns the bound address, or the configured one before [CallbackServer.Start].
func (s *CallbackServer) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Wait blocks until the callback delivers a token, the server fails, ctx ends or timeout passes.
// The server is shut down before Wait returns.
func (s *CallbackServer) Wait(ctx context.Context, timeout time.Duration) (*oauth2.Token, error) {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	defer s.Shutdown()

	var result OAuthResult
	select {
	case result = <-s.handler.Result():
	case err := <-s.errs:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// Shutdown stops the server, giving in-flight requests five seconds.
func (s *CallbackServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
	}
}

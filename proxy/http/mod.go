// Package http implements the proxy with the standard HTTP server. Every
// request is tagged with a request id and logged.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/executor"
	"golang.org/x/xerrors"
)

type key int

const (
	requestIDKey key = 0

	shutdownTimeout = 10 * time.Second
)

// HTTP is the HTTP server of the executor.
//
// - implements proxy.Proxy
type HTTP struct {
	sync.Mutex

	mux        *http.ServeMux
	server     *http.Server
	logger     zerolog.Logger
	listenAddr string
	ln         net.Listener
	done       chan struct{}
}

// NewHTTP creates a new server that will listen on the address. An empty port
// selects a free one.
func NewHTTP(listenAddr string) *HTTP {
	logger := executor.Logger.With().Str("role", "http proxy").Logger()

	nextRequestID := func() string {
		return xid.New().String()
	}

	mux := http.NewServeMux()

	return &HTTP{
		mux: mux,
		server: &http.Server{
			Handler: tracing(nextRequestID)(logging(logger)(mux)),
		},
		logger:     logger,
		listenAddr: listenAddr,
	}
}

// Listen implements proxy.Proxy.
func (h *HTTP) Listen() error {
	h.Lock()
	defer h.Unlock()

	if h.ln != nil {
		return xerrors.New("server already listening")
	}

	ln, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		return xerrors.Errorf("failed to create conn '%s': %v", h.listenAddr, err)
	}

	h.ln = ln
	h.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)

		err := h.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			h.logger.Err(err).Msg("server failed")
		}
	}(h.done)

	h.logger.Info().Stringer("addr", ln.Addr()).Msg("server is ready to handle requests")

	return nil
}

// Stop implements proxy.Proxy.
func (h *HTTP) Stop() error {
	h.Lock()
	defer h.Unlock()

	if h.ln == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	h.server.SetKeepAlivesEnabled(false)

	err := h.server.Shutdown(ctx)
	if err != nil {
		return xerrors.Errorf("failed to shutdown: %v", err)
	}

	<-h.done

	h.ln = nil

	h.logger.Info().Msg("server stopped")

	return nil
}

// GetAddr implements proxy.Proxy.
func (h *HTTP) GetAddr() net.Addr {
	h.Lock()
	defer h.Unlock()

	if h.ln == nil {
		return nil
	}

	return h.ln.Addr()
}

// RegisterHandler implements proxy.Proxy.
func (h *HTTP) RegisterHandler(path string, handler func(http.ResponseWriter,
	*http.Request)) {

	h.mux.HandleFunc(path, handler)
}

// logging logs every request once it has been served.
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}

				logger.Debug().Str("requestID", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Str("remoteAddr", r.RemoteAddr).
					Msg("request served")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// tracing tags the request with the id of the X-Request-Id header, or a new
// one.
func tracing(nextRequestID func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = nextRequestID()
			}

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set("X-Request-Id", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dominicbreuker/pollcat/pkg/log"
	"dominicbreuker/pollcat/pkg/protocol"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBody           = 32 << 20
)

// DefaultMaxRequests is the default number of requests handled concurrently.
const DefaultMaxRequests = 256

// Server exposes the protocol over HTTP. POST /v1/{op} takes a JSON body
// {"args": [...]} and answers with the protocol response as plain text.
type Server struct {
	router *chi.Mux
	proto  *protocol.Protocol
	logger *log.Logger
	sem    *semaphore.Weighted
}

// callRequest is the body of POST /v1/{op}.
type callRequest struct {
	Args []string `json:"args"`
}

// NewServer returns a server handling at most maxRequests requests at once.
func NewServer(p *protocol.Protocol, maxRequests int64, logger *log.Logger) *Server {
	if maxRequests < 1 {
		maxRequests = DefaultMaxRequests
	}

	s := &Server{
		router: chi.NewRouter(),
		proto:  p,
		logger: logger,
		sem:    semaphore.NewWeighted(maxRequests),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(metricsMiddleware)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/v1", s.handleOperations)
	s.router.Post("/v1/{op}", s.handleCall)
}

// Handler returns the router of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve handles requests on nl until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, nl net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.InfoMsg("Serving HTTP on %s", nl.Addr())
		if err := srv.Serve(nl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.ErrorMsg("Encoding healthz response: %s", err)
	}
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string][]string{"operations": protocol.Operations()}); err != nil {
		s.logger.ErrorMsg("Encoding operations response: %s", err)
	}
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if !s.sem.TryAcquire(1) {
		http.Error(w, "too many requests in flight", http.StatusServiceUnavailable)
		return
	}
	defer s.sem.Release(1)

	op := chi.URLParam(r, "op")
	if !protocol.HasOperation(op) {
		http.Error(w, fmt.Sprintf("unknown operation %q", op), http.StatusNotFound)
		return
	}

	var req callRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("invalid request body: %s", err), http.StatusBadRequest)
		return
	}

	resp := s.proto.Call(op, req.Args...)
	s.logger.VerboseMsg("%s %q -> %s", op, req.Args, abbreviate(resp))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, resp)
}

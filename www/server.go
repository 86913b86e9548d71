package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/angas/spotprice-go/config"
	"github.com/angas/spotprice-go/query"
)

type Deps struct {
	Store     SnapshotReader
	Refresher CycleRunner
	History   HistoryReader
	Log       LogReader
	Metrics   http.Handler
	Location  *time.Location
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	mux     *http.ServeMux
	hub     *Hub
	latest  atomic.Pointer[[]byte]
	now     func() time.Time
	started atomic.Bool
}

func NewServer(deps Deps, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		logger: logger,
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewHub(logger),
		now:    time.Now,
	}
	now := func() time.Time { return s.now() }

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	s.mux.Handle("/datafetch", logReqMW(NewFetchHandler(
		logger.With(slog.String("handler", "datafetch")),
		deps.Refresher)))

	s.mux.Handle("/prices", logReqMW(NewPricesHandler(
		logger.With(slog.String("handler", "prices")),
		deps.Store)))

	s.mux.Handle("/prices/current", logReqMW(NewCurrentPriceHandler(
		logger.With(slog.String("handler", "prices_current")),
		deps.Store,
		now)))

	s.mux.Handle("/prices/summary", logReqMW(NewSummaryHandler(
		logger.With(slog.String("handler", "prices_summary")),
		deps.Store,
		loc,
		now)))

	if deps.History != nil {
		s.mux.Handle("/fetches", logReqMW(NewFetchHistoryHandler(
			logger.With(slog.String("handler", "fetches")),
			deps.History)))
	}

	if deps.Log != nil {
		s.mux.Handle("/log", logReqMW(NewLogHandler(
			logger.With(slog.String("handler", "log")),
			deps.Log)))
	}

	if deps.Metrics != nil {
		s.mux.Handle("/metrics", deps.Metrics)
	}

	s.mux.Handle("/healthz", NewHealthHandler(logger.With(slog.String("handler", "healthz")), deps.Store, now))

	s.mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if msg := s.latest.Load(); msg != nil {
			client.send <- *msg
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartHub runs the WebSocket hub until ctx is done. Run calls it, tests
// serving Handler directly call it themselves.
func (s *Server) StartHub(ctx context.Context) {
	if s.started.CompareAndSwap(false, true) {
		go s.hub.Run(ctx)
	}
}

// PublishSummary pushes the summary to every WebSocket client. The last
// summary is replayed to clients connecting later.
func (s *Server) PublishSummary(sum query.DaySummary) error {
	msg, err := json.Marshal(struct {
		Type string           `json:"type"`
		Data query.DaySummary `json:"data"`
	}{Type: "summary", Data: sum})
	if err != nil {
		return fmt.Errorf("encoding websocket summary: %w", err)
	}
	s.latest.Store(&msg)
	s.hub.Send(msg)
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	s.StartHub(ctx)

	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.logger.Info("starting server...", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}

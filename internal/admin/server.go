// Package admin отдаёт служебный HTTP: здоровье, метрики Prometheus и просмотр
// хранилища ключей только на чтение.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/EgorLis/autoreply/internal/keywords"
	"github.com/EgorLis/autoreply/internal/logger"
	"github.com/EgorLis/autoreply/internal/metrics"
)

type Server struct {
	store     *keywords.Store
	metrics   *metrics.Metrics
	connected func() bool // nil: шлюза нет (офлайн-режим)

	srv *http.Server
	ln  net.Listener
}

func New(addr string, store *keywords.Store, m *metrics.Metrics, connected func() bool) *Server {
	s := &Server{store: store, metrics: m, connected: connected}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	r.HandleFunc("/keywords", s.listKeywords).Methods(http.MethodGet)
	r.HandleFunc("/keywords/{key}", s.getKeyword).Methods(http.MethodGet)
	r.HandleFunc("/ocr", s.listOCR).Methods(http.MethodGet)
	return r
}

// Start слушает addr в фоне. Ошибка привязки порта возвращается сразу.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	logger.Info("admin_listening", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin_serve_failed", "err", err)
		}
	}()
	return nil
}

// Addr: фактический адрес после Start (полезно при ":0").
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	gw := "offline"
	if s.connected != nil {
		gw = "connected"
		if !s.connected() {
			gw, status, code = "disconnected", "degraded", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]string{"status": status, "gateway": gw})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) listKeywords(w http.ResponseWriter, r *http.Request) {
	filter, ok := keywords.ParseFilter(r.URL.Query().Get("filter"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filter must be all, meme or non-meme"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": s.store.Groups(filter)})
}

type keywordView struct {
	Key     string                `json:"key"`
	Alias   string                `json:"alias,omitempty"`
	Content string                `json:"content,omitempty"`
	Files   []keywords.Attachment `json:"files,omitempty"`
	IsMeme  bool                  `json:"isMeme"`
}

func (s *Server) getKeyword(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	stored, raw, ok := s.store.Resolve(key, false)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "keyword not found"})
		return
	}
	canon, e, ok := s.store.Resolve(key, true)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "keyword not found"})
		return
	}
	v := keywordView{Key: canon, Content: e.Content, Files: e.Files, IsMeme: e.IsMeme}
	if raw.IsAlias() {
		v.Alias = stored
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) listOCR(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"triggers": s.store.OCRTriggers()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("admin_write_failed", "err", err)
	}
}

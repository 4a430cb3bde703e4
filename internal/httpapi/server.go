package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/MimeLyc/contextual-doc-translator/internal/service"
)

type Server struct {
	app *service.App
	hub *Hub

	uiEnabled   bool
	uiStaticDir string
	heartbeat   time.Duration
	upgrader    websocket.Upgrader

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

// WithHub streams events from hub, which must also be registered with the
// session. Without it the event routes report 501.
func WithHub(hub *Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

func NewServer(app *service.App, opts ...Option) *Server {
	s := &Server{
		app:       app,
		uiEnabled: false,
		heartbeat: 15 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler is the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "ctxdoc")
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/session", s.handleSession)
	s.mux.HandleFunc("/api/session/open", s.handleOpen)
	s.mux.HandleFunc("/api/session/text", s.handleText)
	s.mux.HandleFunc("/api/session/translate", s.handleTranslate)
	s.mux.HandleFunc("/api/session/undo", s.handleUndo)
	s.mux.HandleFunc("/api/session/redo", s.handleRedo)
	s.mux.HandleFunc("/api/session/flush", s.handleFlush)
	s.mux.HandleFunc("/api/batch", s.handleBatch)
	s.mux.HandleFunc("/api/chapters", s.handleChapters)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/glossaries", s.handleGlossaries)
	s.mux.HandleFunc("/api/glossaries/entries", s.handleGlossaryEntries)
	s.mux.HandleFunc("/api/glossaries/rename", s.handleGlossaryRename)
	s.mux.HandleFunc("/api/glossaries/delete", s.handleGlossaryDelete)
	s.mux.HandleFunc("/api/glossaries/suggest", s.handleSuggest)
	s.mux.HandleFunc("/api/synonyms", s.handleSynonyms)
	s.mux.HandleFunc("/api/events", s.handleEventStream)
	s.mux.HandleFunc("/api/ws", s.handleWebSocket)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	indexPath := filepath.Join(s.uiStaticDir, "index.html")

	if rel == "" || !strings.Contains(filepath.Base(rel), ".") {
		http.ServeFile(w, r, indexPath)
		return
	}

	filePath := filepath.Join(s.uiStaticDir, rel)
	if _, err := os.Stat(filePath); err != nil {
		// SPA fallback: non-existing static file path returns index
		http.ServeFile(w, r, indexPath)
		return
	}
	http.ServeFile(w, r, filePath)
}

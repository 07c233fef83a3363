// Package server is the HTTP glue around the flow engine: JWT auth, the
// collaborative answer endpoint, generated file downloads, translation and
// CRUD for memories, sessions and templates.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"ukiyo/internal/config"
	"ukiyo/internal/envelope"
	"ukiyo/internal/flow"
	"ukiyo/internal/logging"
	"ukiyo/internal/provider"
	"ukiyo/internal/store"
	"ukiyo/internal/usage"
)

// Store is the persistence the handlers need. *store.Store satisfies it.
type Store interface {
	GetUser(ctx context.Context, id string) (store.User, error)
	RegisterUser(ctx context.Context, username, passwordHash string) (store.User, error)
	Credentials(ctx context.Context, username string) (store.User, string, error)

	CreateSession(ctx context.Context, userID, title, mode string) (store.Session, error)
	GetSession(ctx context.Context, userID, id string) (store.Session, error)
	SetSessionStatus(ctx context.Context, id string, status envelope.Status, mode string) error
	ListSessions(ctx context.Context, userID string) ([]store.Session, error)

	AppendMessage(ctx context.Context, sessionID, role, content, aiModel string) (store.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
	FirstUserMessage(ctx context.Context, sessionID string) (string, error)

	ListMemories(ctx context.Context, userID string) ([]store.Memory, error)
	CreateMemory(ctx context.Context, userID string, in store.MemoryInput) (store.Memory, error)
	UpdateMemory(ctx context.Context, userID, id string, in store.MemoryInput) (store.Memory, error)
	DeleteMemory(ctx context.Context, userID, id string) error

	ListTemplates(ctx context.Context, userID string) ([]store.Template, error)
	CreateTemplate(ctx context.Context, userID string, in store.TemplateInput) (store.Template, error)
	DeleteTemplate(ctx context.Context, userID, id string) error
}

var _ Store = (*store.Store)(nil)

// Runner executes a mode flow. *flow.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, mode string, in flow.Input, env *envelope.Envelope) error
}

var _ Runner = (*flow.Engine)(nil)

// Config holds the server settings.
type Config struct {
	JWTSecret          string
	TokenTTL           time.Duration
	MaxUploadBytes     int64
	GeneratedFilesDir  string
	MaxConcurrentFlows int64
	ShutdownTimeout    time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		TokenTTL:           7 * 24 * time.Hour,
		MaxUploadBytes:     10 << 20,
		GeneratedFilesDir:  "data/generated",
		MaxConcurrentFlows: 8,
		ShutdownTimeout:    10 * time.Second,
	}
}

// ConfigFrom derives the server settings from the application config.
func ConfigFrom(c *config.Config) Config {
	sc := DefaultConfig()
	sc.JWTSecret = c.Server.JWTSecret
	sc.TokenTTL = c.GetTokenTTL()
	if c.Server.MaxUploadBytes > 0 {
		sc.MaxUploadBytes = c.Server.MaxUploadBytes
	}
	if c.Server.GeneratedFilesDir != "" {
		sc.GeneratedFilesDir = c.Server.GeneratedFilesDir
	}
	if c.Server.MaxConcurrentFlows > 0 {
		sc.MaxConcurrentFlows = c.Server.MaxConcurrentFlows
	}
	return sc
}

// Deps are the collaborators the server calls.
type Deps struct {
	Store      Store
	Engine     Runner
	Translator provider.Translator
	Usage      *usage.Tracker
}

// Server serves the HTTP API.
type Server struct {
	cfg     Config
	deps    Deps
	flows   *semaphore.Weighted
	handler http.Handler
}

// New validates cfg and builds the routes.
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("server: JWT secret is required")
	}
	if deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("server: store and engine are required")
	}
	if cfg.MaxConcurrentFlows <= 0 {
		cfg.MaxConcurrentFlows = DefaultConfig().MaxConcurrentFlows
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if err := os.MkdirAll(cfg.GeneratedFilesDir, 0755); err != nil {
		return nil, fmt.Errorf("server: generated files dir: %w", err)
	}

	s := &Server{cfg: cfg, deps: deps, flows: semaphore.NewWeighted(cfg.MaxConcurrentFlows)}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)

	mux.Handle("POST /collaborative_answer_v2", s.authed(s.handleCollaborativeAnswer))
	mux.Handle("GET /download_generated_file/{filename}", s.authed(s.handleDownload))
	mux.Handle("POST /translate", s.authed(s.handleTranslate))

	mux.Handle("GET /memories", s.authed(s.handleListMemories))
	mux.Handle("POST /memories", s.authed(s.handleCreateMemory))
	mux.Handle("PUT /memories/{id}", s.authed(s.handleUpdateMemory))
	mux.Handle("DELETE /memories/{id}", s.authed(s.handleDeleteMemory))

	mux.Handle("GET /sessions", s.authed(s.handleListSessions))
	mux.Handle("GET /sessions/{id}/messages", s.authed(s.handleListMessages))

	mux.Handle("GET /templates", s.authed(s.handleListTemplates))
	mux.Handle("POST /templates", s.authed(s.handleCreateTemplate))
	mux.Handle("DELETE /templates/{id}", s.authed(s.handleDeleteTemplate))

	mux.Handle("GET /usage", s.authed(s.handleUsage))

	return withRequestID(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Server("Shutting down (timeout %s)", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

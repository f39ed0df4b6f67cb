// Package server exposes the session engine over a JSON API. Each
// browser user gets a cookie-scoped session id; that id routes to a
// dedicated session manager and is forwarded to the backend so
// server-held chat history stays per-user.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	sess "github.com/leapstack-labs/clinsight/internal/session"
)

const sessionCookie = "clinsight_session"

// ManagerFactory builds a session manager bound to one user id.
type ManagerFactory func(userID string) (*sess.Manager, error)

// Config holds server configuration.
type Config struct {
	Addr string
	// SessionKey signs the user cookie. Empty generates an ephemeral
	// key, which invalidates cookies across restarts.
	SessionKey string
	// SecureCookies marks the session cookie Secure. Leave false for
	// the plain-HTTP local deployment or browsers drop the cookie and
	// every request gets a fresh session.
	SecureCookies bool
	// NewManager builds the per-user session engine.
	NewManager ManagerFactory
	// DemoQuestions fetches the backend's example questions.
	DemoQuestions func(ctx context.Context) ([]string, error)
	Logger        *slog.Logger
}

// Server is the HTTP front of the session engine.
type Server struct {
	addr         string
	sessionStore *sessions.CookieStore
	newManager   ManagerFactory
	demo         func(ctx context.Context) ([]string, error)
	logger       *slog.Logger

	mu       sync.Mutex
	managers map[string]*sess.Manager
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.NewManager == nil {
		return nil, fmt.Errorf("server: manager factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	key := cfg.SessionKey
	if key == "" {
		key = uuid.New().String()
	}

	sessionStore := sessions.NewCookieStore([]byte(key))
	sessionStore.MaxAge(86400 * 30)
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	// gorilla/sessions defaults to Secure cookies since v1.4.
	sessionStore.Options.Secure = cfg.SecureCookies

	return &Server{
		addr:         cfg.Addr,
		sessionStore: sessionStore,
		newManager:   cfg.NewManager,
		demo:         cfg.DemoQuestions,
		logger:       logger,
		managers:     make(map[string]*sess.Manager),
	}, nil
}

// Serve starts the HTTP server and blocks until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		err := srv.Shutdown(shutdownCtx)
		s.closeManagers()
		return err
	})

	return eg.Wait()
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/demo-questions", s.handleDemoQuestions)

		r.Post("/questions", s.handleSubmit)
		r.Get("/view", s.handleView)
		r.Get("/tabs", s.handleListTabs)
		r.Get("/tabs/{id}", s.handleGetTab)
		r.Post("/tabs/{id}/activate", s.handleActivate)
		r.Delete("/tabs/{id}", s.handleCloseTab)
		r.Post("/tabs/{id}/sql", s.handleEditedSQL)
		r.Get("/tabs/{id}/export.csv", s.handleExportCSV)
		r.Delete("/session", s.handleReset)
	})
	return r
}

// manager returns the session manager for the request's user, creating
// the user cookie and the manager on first contact.
func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*sess.Manager, error) {
	cookie, _ := s.sessionStore.Get(r, sessionCookie)
	uid, _ := cookie.Values["uid"].(string)
	if uid == "" {
		uid = uuid.New().String()
		cookie.Values["uid"] = uid
		if err := cookie.Save(r, w); err != nil {
			return nil, fmt.Errorf("failed to save session cookie: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.managers[uid]; ok {
		return m, nil
	}
	m, err := s.newManager(uid)
	if err != nil {
		return nil, err
	}
	s.managers[uid] = m
	return m, nil
}

func (s *Server) closeManagers() {
	s.mu.Lock()
	managers := s.managers
	s.managers = make(map[string]*sess.Manager)
	s.mu.Unlock()
	for _, m := range managers {
		m.Close()
	}
}

package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tritonJS826/ai-crm/internal/acl"
	"github.com/tritonJS826/ai-crm/internal/hub"
	"github.com/tritonJS826/ai-crm/internal/server/middleware"
	"github.com/tritonJS826/ai-crm/internal/session"
	"github.com/tritonJS826/ai-crm/pkg/config"
	"github.com/tritonJS826/ai-crm/pkg/transport"
)

// App wires the realtime core together and owns its process lifecycle.
// There are no package-level singletons; everything hangs off this
// struct and dies with it.
type App struct {
	logger     *slog.Logger
	registry   *hub.Registry
	dispatcher *hub.Dispatcher
	guard      *session.Guard
	wg         sync.WaitGroup
	http       *http.Server
	config     *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, checker acl.ParticipationChecker) *App {
	registry := hub.NewRegistry(logger)
	gate := acl.NewGate(checker, logger)
	guard := session.NewGuard(registry, gate, cfg.Session.IdleTimeout, logger)
	dispatcher := hub.NewDispatcher(registry, cfg.Dispatch.EnableGlobalBroadcast, logger)

	app := &App{
		logger:     logger,
		registry:   registry,
		dispatcher: dispatcher,
		guard:      guard,
		config:     cfg,
		ctx:        rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	connCycler := func(userID string) {
		oldest, found := registry.OldestOfUser(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", "userID", userID, "connID", oldest.ID)
			oldest.Transport.CloseWithStatus(websocket.StatusGoingAway, "connection cycled by new connection")
			registry.Evict(oldest.ID)
		}
	}

	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, app.config.Server.Auth.JWTSecret),
			middleware.NewConnectionLimiter(
				logger,
				registry.CountByUser,
				connCycler,
				app.config.Server.ConnectionLimit,
			),
		),
	)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	app.http = &http.Server{Addr: app.config.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

// Dispatcher exposes the publish surface the rest of the backend uses
// to push realtime notifications.
func (a *App) Dispatcher() *hub.Dispatcher {
	return a.dispatcher
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.guard.HandleFrame,
		nil,
		a.logger,
	)
	// Admit before Run so broadcasts can reach the connection from its
	// first moment; the transport's close path owns the final eviction.
	admitted := a.registry.Admit(conn, conn.ID(), hub.Identity{
		UserID: reqMeta.UserID,
		Role:   reqMeta.Role,
	}, reqMeta.TokenExpiry)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		a.registry.Evict(id)
	})

	connLogger.Info("User connection fully established", slog.String("connID", admitted.ID.String()))
	conn.Run()
	<-conn.Done()
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Drain: close and evict every live connection.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.registry.All() {
		conn.Transport.CloseWithStatus(websocket.StatusGoingAway, "server shutdown")
		a.registry.Evict(conn.ID)
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}

package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rentranks/rentranks-front/internal/backend"
	"github.com/rentranks/rentranks-front/internal/config"
	"github.com/rentranks/rentranks-front/internal/crypto"
	"github.com/rentranks/rentranks-front/internal/idp"
	"github.com/rentranks/rentranks-front/internal/log"
	"github.com/rentranks/rentranks-front/internal/server"
	"github.com/rentranks/rentranks-front/internal/session"
)

// RentFront represents the complete front-end application
type RentFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	cleanup    *session.CleanupManager
	store      session.Store
}

// NewRentFront creates the application with all dependencies built
func NewRentFront(ctx context.Context, cfg config.Config) (*RentFront, error) {
	log.LogInfoWithFields("rentfront", "Building application", map[string]any{
		"baseURL": cfg.Server.BaseURL,
		"backend": cfg.Backend.APIURL,
		"storage": cfg.Sessions.Storage,
	})

	store, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup session store: %w", err)
	}

	backendOpts := []backend.Option{}
	if cfg.Backend.Timeout > 0 {
		backendOpts = append(backendOpts, backend.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))
	}
	backendClient := backend.NewClient(cfg.Backend.APIURL, backendOpts...)

	managerOpts := []session.ManagerOption{}
	if cfg.Sessions.TTL > 0 {
		managerOpts = append(managerOpts, session.WithSessionTTL(cfg.Sessions.TTL))
	}
	sessions := session.NewManager(backendClient, store, managerOpts...)

	providers := setupProviders(cfg)

	sessionTTL := cfg.Sessions.TTL
	if sessionTTL <= 0 {
		sessionTTL = session.DefaultSessionTTL
	}
	cookies := server.NewSessionCookies([]byte(cfg.Sessions.SigningSecret), sessionTTL)

	mux := buildHTTPHandler(cfg, sessions, backendClient, providers, cookies)
	httpServer := server.NewHTTPServer(mux, cfg.Server.Addr)

	cleanup := session.NewCleanupManager(store, cfg.Sessions.CleanupInterval)

	return &RentFront{
		config:     cfg,
		httpServer: httpServer,
		cleanup:    cleanup,
		store:      store,
	}, nil
}

// Run starts and manages the application lifecycle
func (a *RentFront) Run() error {
	log.LogInfoWithFields("rentfront", "Starting application", map[string]any{
		"addr": a.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cleanup != nil {
		a.cleanup.Start(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("rentfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("rentfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	case <-ctx.Done():
		shutdownReason = "context cancelled"
		log.LogInfoWithFields("rentfront", "Context cancelled, shutting down", nil)
	}

	log.LogInfoWithFields("rentfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("rentfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	if closer, ok := a.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.LogWarnWithFields("rentfront", "Session store close error", map[string]any{
				"error": err.Error(),
			})
		}
	}

	log.LogInfoWithFields("rentfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStore creates the session store based on configuration
func setupStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.Sessions.Storage {
	case config.StorageRedis:
		log.LogInfoWithFields("rentfront", "Using Redis session store", map[string]any{
			"addr": cfg.Sessions.Redis.Addr,
		})
		return session.NewRedisStore(ctx, cfg.Sessions.Redis.Addr, string(cfg.Sessions.Redis.Password))

	case config.StorageFirestore:
		log.LogInfoWithFields("rentfront", "Using Firestore session store", map[string]any{
			"project":    cfg.Sessions.Firestore.GCPProject,
			"database":   cfg.Sessions.Firestore.Database,
			"collection": cfg.Sessions.Firestore.Collection,
		})
		encryptor, err := crypto.NewEncryptor([]byte(cfg.Sessions.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		collection := cfg.Sessions.Firestore.Collection
		if collection == "" {
			collection = "sessions"
		}
		return session.NewFirestoreStore(ctx, cfg.Sessions.Firestore.GCPProject, cfg.Sessions.Firestore.Database, collection, encryptor)

	default:
		log.LogInfoWithFields("rentfront", "Using in-memory session store", map[string]any{})
		return session.NewMemoryStore(), nil
	}
}

// setupProviders builds the identity provider registry from config
func setupProviders(cfg config.Config) *idp.Registry {
	var list []idp.Provider

	if g := cfg.OAuth.Google; g != nil {
		redirectURI := cfg.Server.BaseURL + "/oauth/callback/google"
		list = append(list, idp.NewGoogleProvider(g.ClientID, string(g.ClientSecret), redirectURI))
	}
	if f := cfg.OAuth.Facebook; f != nil {
		redirectURI := cfg.Server.BaseURL + "/oauth/callback/facebook"
		list = append(list, idp.NewFacebookProvider(f.ClientID, string(f.ClientSecret), redirectURI))
	}

	return idp.NewRegistry(list...)
}

// buildHTTPHandler creates the complete HTTP handler with all routing and middleware
func buildHTTPHandler(
	cfg config.Config,
	sessions *session.Manager,
	backendClient *backend.Client,
	providers *idp.Registry,
	cookies *server.SessionCookies,
) http.Handler {
	mux := http.NewServeMux()

	requestID := server.NewRequestIDMiddleware()
	logger := server.NewLoggerMiddleware("http")
	recovery := server.NewRecoverMiddleware("http")
	attachSession := server.NewSessionMiddleware(sessions, cookies)

	// Inner-to-outer: session resolution first, then logging, request id,
	// recovery outermost.
	middleware := []server.MiddlewareFunc{
		attachSession,
		logger,
		requestID,
		recovery,
	}

	route := func(handler http.HandlerFunc) http.Handler {
		return server.ChainMiddleware(handler, middleware...)
	}

	mux.Handle("GET /health", server.NewHealthHandler())

	authHandlers := server.NewAuthHandlers(sessions, backendClient, providers, cookies, []byte(cfg.Sessions.SigningSecret))
	mux.Handle("POST /auth/login", route(authHandlers.LoginHandler))
	mux.Handle("POST /auth/register", route(authHandlers.RegisterHandler))
	mux.Handle("POST /auth/logout", route(authHandlers.LogoutHandler))
	mux.Handle("GET /auth/session", route(authHandlers.SessionHandler))
	mux.Handle("GET /oauth/login/{provider}", route(authHandlers.OAuthLoginHandler))
	mux.Handle("GET /oauth/callback/{provider}", route(authHandlers.OAuthCallbackHandler))

	pageHandlers := server.NewPageHandlers(backendClient, providerTypes(cfg))
	mux.Handle("GET /", route(pageHandlers.HomeHandler))
	mux.Handle("GET /login", route(pageHandlers.LoginPageHandler))
	mux.Handle("GET /register", route(pageHandlers.RegisterPageHandler))
	mux.Handle("GET /search", route(pageHandlers.SearchHandler))
	mux.Handle("GET /profile/{id}", route(pageHandlers.ProfileHandler))
	mux.Handle("POST /profile/{id}/claim", route(pageHandlers.ClaimHandler))
	mux.Handle("GET /submit-review", route(pageHandlers.SubmitReviewPageHandler))
	mux.Handle("POST /submit-review", route(pageHandlers.SubmitReviewHandler))
	mux.Handle("GET /edit-review/{id}", route(pageHandlers.EditReviewPageHandler))
	mux.Handle("POST /edit-review/{id}", route(pageHandlers.EditReviewHandler))
	mux.Handle("GET /my-reviews", route(pageHandlers.MyReviewsHandler))

	log.LogInfoWithFields("rentfront", "HTTP routes initialized", nil)
	return mux
}

func providerTypes(cfg config.Config) []string {
	var types []string
	if cfg.OAuth.Google != nil {
		types = append(types, "google")
	}
	if cfg.OAuth.Facebook != nil {
		types = append(types, "facebook")
	}
	return types
}

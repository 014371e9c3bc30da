package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Mmckelve45/auth0-pizza42/internal/audit"
	"github.com/Mmckelve45/auth0-pizza42/internal/auth"
	"github.com/Mmckelve45/auth0-pizza42/internal/config"
	"github.com/Mmckelve45/auth0-pizza42/internal/db"
	"github.com/Mmckelve45/auth0-pizza42/internal/idp"
	"github.com/Mmckelve45/auth0-pizza42/internal/linking"
	"github.com/Mmckelve45/auth0-pizza42/internal/linking/handler"
	"github.com/Mmckelve45/auth0-pizza42/internal/middleware"
	"github.com/Mmckelve45/auth0-pizza42/internal/session"
	"github.com/Mmckelve45/auth0-pizza42/internal/token"
	"github.com/Mmckelve45/auth0-pizza42/web"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore, tokenConsumer, err := setupSessionStore(cfg, infra)
	if err != nil {
		return nil, nil, err
	}

	codec := token.NewCodec(cfg.ContinuationSecret, token.DefaultTTL)

	mgmtClient, err := idp.New(
		ctx,
		cfg.Auth0Domain,
		cfg.ManagementClientID,
		cfg.ManagementClientSecret,
	)
	if err != nil {
		return nil, nil, err
	}

	reauthProvider, err := auth.NewReauthProvider(
		ctx,
		cfg.Auth0Domain,
		cfg.LinkClientID,
		cfg.LinkClientSecret,
		cfg.CallbackURL(),
	)
	if err != nil {
		return nil, nil, err
	}

	verifier, err := middleware.NewOIDCVerifier(ctx, cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		return nil, nil, err
	}

	var locker db.AdvisoryLocker = db.NoopLocker{}
	var recorder audit.Recorder = audit.NopRecorder{}
	if infra.DB != nil {
		locker = &db.PgAdvisoryLocker{DB: infra.DB}
		recorder = audit.NewDBRecorder(infra.DB)
	}

	svc := linking.NewService(
		codec,
		sessionStore,
		tokenConsumer,
		reauthProvider,
		mgmtClient,
		locker,
		recorder,
	)

	linkHandler := handler.NewHandler(svc, sessionStore, handler.Config{
		AppURL:        cfg.AppURL,
		SecureCookies: cfg.IsProduction(),
		DevMode:       !cfg.IsProduction(),
	})

	authMiddleware := middleware.NewAuthMiddleware(verifier)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	router.SetHTMLTemplate(web.Templates())

	linkHandler.RegisterRoutes(router, middleware.GinRequireAuth(authMiddleware))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, infra.Close, nil
}

// setupSessionStore picks the backend from config. Postgres and Redis double
// as the continuation-token consumption marker; the in-memory store is for
// local development only and does not survive restarts.
func setupSessionStore(cfg config.Config, infra *Infra) (session.Store, session.TokenConsumer, error) {
	switch cfg.SessionBackend {
	case "postgres":
		if infra.DB == nil {
			return nil, nil, fmt.Errorf("session backend %q requires DATABASE_DSN", cfg.SessionBackend)
		}
		store := session.NewPostgresStore(infra.DB)
		return store, store, nil

	case "redis":
		if infra.Redis == nil {
			return nil, nil, fmt.Errorf("session backend %q requires REDIS_ADDR", cfg.SessionBackend)
		}
		store := session.NewRedisStore(infra.Redis.Client)
		return store, store, nil

	case "memory":
		store := session.NewMemoryStore()
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

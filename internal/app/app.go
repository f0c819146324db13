package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	nats "github.com/nats-io/nats.go"
	"gorm.io/gorm"

	"github.com/Jxel117/GastanGO-sub000/config"
	"github.com/Jxel117/GastanGO-sub000/internal/adapters/boltdb"
	repo "github.com/Jxel117/GastanGO-sub000/internal/adapters/gormrepo"
	httpadapter "github.com/Jxel117/GastanGO-sub000/internal/adapters/http"
	apiv1 "github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1"
	"github.com/Jxel117/GastanGO-sub000/internal/adapters/http/api/v1/handlers"
	authmw "github.com/Jxel117/GastanGO-sub000/internal/adapters/http/middleware"
	"github.com/Jxel117/GastanGO-sub000/internal/adapters/mailer"
	natsadapter "github.com/Jxel117/GastanGO-sub000/internal/adapters/nats"
	"github.com/Jxel117/GastanGO-sub000/internal/hasher"
	"github.com/Jxel117/GastanGO-sub000/internal/usecase"
	pkglog "github.com/Jxel117/GastanGO-sub000/pkg/log"
)

type App struct {
	cfg      *config.Config
	logger   pkglog.Logger
	db       *gorm.DB
	bolt     *boltdb.SessionRepository
	natsConn *nats.Conn
	echo     *echo.Echo
	service  usecase.Service
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := pkglog.New(cfg.AppEnv, cfg.LogLevel)
	a := &App{cfg: cfg, logger: logger}

	db, err := repo.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	if err := repo.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	var sessions usecase.SessionRepository = repo.NewSessionRepository(db)
	if cfg.SessionBackend == config.SessionBackendBolt {
		bolt, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.bolt = bolt
		sessions = bolt
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.AppName), nats.MaxReconnects(-1))
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats connect failed")
		} else {
			a.natsConn = nc
		}
	}

	bcrypt, err := hasher.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		a.Close()
		return nil, err
	}
	signer, err := usecase.NewJWTSigner(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	credentials := usecase.NewCredentialStore(repo.NewIdentityRepository(db), bcrypt, cfg.DefaultRole, cfg.MinPasswordLength)
	registry := usecase.NewRevocationRegistry(sessions, time.Now)
	a.service = usecase.NewAuthService(cfg, logger, credentials, registry, signer, a.notifier())

	if a.natsConn != nil {
		if _, err := natsadapter.NewAuthorizeHandler(a.service).Subscribe(a.natsConn, cfg.NATSAuthorizeSubject, cfg.AppName); err != nil {
			logger.Warn().Err(err).Msg("authorize subscription failed")
		}
	}

	handler := handlers.NewAuthHandler(a.service)
	authMW := authmw.NewAuthMiddleware(a.service)
	router := httpadapter.NewRouter(cfg, logger, apiv1.NewRouter(handler, authMW.Handler), a.pingDB)

	e := echo.New()
	router.Setup(e)
	a.echo = e
	return a, nil
}

// notifier picks the mail transport: HTTP gateway, then NATS, then log only.
func (a *App) notifier() usecase.Notifier {
	switch {
	case a.cfg.MailerURL != "":
		return mailer.NewHTTPSender(a.cfg.MailerURL, a.cfg.MailerTimeout)
	case a.natsConn != nil:
		return natsadapter.NewMailPublisher(a.natsConn, a.cfg.NATSMailSubject)
	default:
		return mailer.NewLogSender(a.logger)
	}
}

// Run serves HTTP until ctx is cancelled or the server fails. It returns only
// after the server has shut down and the purge loop has stopped, so Close can
// release storage safely afterwards.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.purgeLoop(runCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%s", a.cfg.HTTPHost, a.cfg.HTTPPort)
		a.logger.Info().Str("addr", addr).Msg("http server listening")
		errCh <- a.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	shutdownErr := a.echo.Shutdown(shutdownCtx)
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}

// purgeLoop drops expired session records. It is storage hygiene only;
// expired tokens are already rejected by Authorize.
func (a *App) purgeLoop(ctx context.Context) {
	if a.cfg.SessionPurgeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.SessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.service.PurgeExpiredSessions(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("session purge failed")
			}
		}
	}
}

func (a *App) pingDB(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) Close() {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
	}
	if a.bolt != nil {
		_ = a.bolt.Close()
	}
	if a.db != nil {
		_ = repo.Close(a.db)
	}
}

// Migrate applies the schema and exits; used by --migrate-only.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := repo.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close(db) }()
	return repo.Migrate(ctx, db)
}

package genbot

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/alovak/cardgen-bot/genbot/models"
	"github.com/alovak/cardgen-bot/internal/access"
	"github.com/alovak/cardgen-bot/internal/batch"
	"github.com/alovak/cardgen-bot/internal/binlookup"
	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/alovak/cardgen-bot/internal/expiry"
	"github.com/alovak/cardgen-bot/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

// UpdateSource delivers inbound chat updates until Stop is called.
type UpdateSource interface {
	Updates(ctx context.Context) (<-chan models.Update, error)
	Stop()
}

// Transport is everything the bot needs from the chat platform.
type Transport interface {
	UpdateSource
	Sender
	MembershipChecker
}

// App is the main application, it contains all the components of the bot
// and is responsible for starting and stopping them.
type App struct {
	srv       *http.Server
	wg        *sync.WaitGroup
	Addr      string
	logger    *slog.Logger
	config    *Config
	transport Transport

	// loopCtx stops the update loop and the table watcher; handlerCtx
	// outlives it so in-flight commands can finish replying.
	loopCancel    context.CancelFunc
	handlerCtx    context.Context
	handlerCancel context.CancelFunc

	db    *sql.DB
	redis *redis.Client
}

func NewApp(logger *slog.Logger, config *Config, transport Transport) *App {
	logger = logger.With(slog.String("app", "genbot"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:        &sync.WaitGroup{},
		logger:    logger,
		config:    config,
		transport: transport,
	}
}

// Start brings up the access store, the resolver, the HTTP listener and the
// update loop. On error everything already started is released.
func (a *App) Start() (err error) {
	a.logger.Info("starting app...")

	loopCtx, loopCancel := context.WithCancel(context.Background())
	a.loopCancel = loopCancel
	a.handlerCtx, a.handlerCancel = context.WithCancel(context.Background())

	defer func() {
		if err != nil {
			a.abort()
		}
	}()

	if a.config.ExpiryTZ != "" {
		if loc, err := time.LoadLocation(a.config.ExpiryTZ); err == nil {
			expiry.SetDefaultExpiryLocation(loc)
		} else {
			a.logger.Info("invalid ExpiryTZ; using default UTC", slog.String("tz", a.config.ExpiryTZ), slog.Any("err", err))
		}
	}
	a.logger.Info("expiry location", slog.String("tz", expiry.Location().String()))

	persister, err := a.persister(loopCtx)
	if err != nil {
		return err
	}
	store, err := access.Open(loopCtx, persister)
	if err != nil {
		return fmt.Errorf("opening access store: %w", err)
	}
	a.logger.Info("access store loaded", slog.String("backend", a.config.AccessBackend))

	resolver, err := a.resolver(loopCtx)
	if err != nil {
		return err
	}

	notifier := NewNotifier(a.logger, a.transport, a.config.Admin)
	policy := access.NewPolicy(store, a.config.Admin, notifier)
	service := NewService(policy, cardgen.NewGenerator(a.config.GenMaxAttempts), resolver, batch.LocalChecker{}, a.config)
	commands := NewCommands(a.logger, service, a.transport, notifier, a.transport, a.config.RequiredChannel)

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))

	api := NewAPI(store)
	api.AppendRoutes(router)

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler: router,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	updates, err := a.transport.Updates(loopCtx)
	if err != nil {
		return fmt.Errorf("receiving updates: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info("update loop started")
		for {
			select {
			case <-loopCtx.Done():
				a.logger.Info("update loop stopped")
				return
			case upd, ok := <-updates:
				if !ok {
					a.logger.Info("update channel closed")
					return
				}
				a.wg.Add(1)
				go a.handle(commands, upd)
			}
		}
	}()

	return nil
}

// handle runs one update. A panic is logged and does not stop the bot.
func (a *App) handle(commands *Commands, upd models.Update) {
	defer a.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("panic handling update", slog.Any("panic", rec))
		}
	}()
	commands.Handle(a.handlerCtx, upd)
}

func (a *App) persister(ctx context.Context) (access.Persister, error) {
	switch a.config.AccessBackend {
	case "pg":
		db, err := sql.Open("postgres", a.config.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(2)
		db.SetMaxOpenConns(5)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		a.db = db
		p := access.NewPGPersister(db)
		if err := p.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating access list: %w", err)
		}
		return p, nil
	case "file":
		return access.NewFilePersister(a.config.AccessFile), nil
	default:
		return nil, fmt.Errorf("unsupported ACCESS_BACKEND=%s", a.config.AccessBackend)
	}
}

func (a *App) resolver(ctx context.Context) (*binlookup.Resolver, error) {
	table := binlookup.NewTable(nil)
	if path := a.config.BINTablePath; path != "" {
		if err := table.LoadFile(path); err != nil {
			return nil, fmt.Errorf("loading bin table: %w", err)
		}
		if err := table.Watch(ctx, a.logger, path); err != nil {
			a.logger.Warn("bin table will not be reloaded", "err", err)
		}
	}

	var cache binlookup.Cache = binlookup.NewMemoryCache(a.config.BINCacheTTL)
	if a.config.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: a.config.RedisAddr})
		rc := binlookup.NewRedisCache(client, a.config.BINCacheTTL)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rc.Ping(pingCtx)
		cancel()

		if err != nil {
			a.logger.Warn("redis unavailable, using in-memory bin cache", slog.String("addr", a.config.RedisAddr), "err", err)
			client.Close()
		} else {
			a.redis = client
			cache = rc
		}
	}

	var remote binlookup.Fetcher
	if a.config.BINAPIURL != "" {
		remote = binlookup.NewClient(a.config.BINAPIURL, &http.Client{Timeout: a.config.BINAPITimeout})
	}

	return binlookup.NewResolver(a.logger, table, cache, remote, a.config.BINAPITimeout), nil
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	if a.loopCancel != nil {
		a.loopCancel()
	}
	if a.transport != nil {
		a.transport.Stop()
	}

	if a.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.srv.Shutdown(ctx)
		cancel()
	}

	a.wg.Wait()

	if a.handlerCancel != nil {
		a.handlerCancel()
	}
	a.closeBackends()

	a.logger.Info("app stopped")
}

// abort releases whatever a failed Start had already acquired.
func (a *App) abort() {
	a.loopCancel()
	a.handlerCancel()
	if a.srv != nil {
		a.srv.Close()
	}
	a.wg.Wait()
	a.closeBackends()
}

func (a *App) closeBackends() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("closing redis", "err", err)
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("closing postgres", "err", err)
		}
		a.db = nil
	}
}

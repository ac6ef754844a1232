package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/souschef/internal/app/mirror"
	"github.com/R3E-Network/souschef/internal/app/services/accounts"
	"github.com/R3E-Network/souschef/internal/app/services/budget"
	"github.com/R3E-Network/souschef/internal/app/services/ingredients"
	"github.com/R3E-Network/souschef/internal/app/services/logs"
	"github.com/R3E-Network/souschef/internal/app/services/notes"
	"github.com/R3E-Network/souschef/internal/app/services/products"
	"github.com/R3E-Network/souschef/internal/app/services/recipes"
	"github.com/R3E-Network/souschef/internal/app/services/shopping"
	"github.com/R3E-Network/souschef/internal/app/storage"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	"github.com/R3E-Network/souschef/internal/app/storage/remote"
	"github.com/R3E-Network/souschef/internal/app/storage/sqlstore"
	"github.com/R3E-Network/souschef/internal/app/system"
	"github.com/R3E-Network/souschef/internal/app/watch"
	"github.com/R3E-Network/souschef/internal/config"
	"github.com/R3E-Network/souschef/internal/logging"
	"github.com/R3E-Network/souschef/internal/middleware"
	"github.com/R3E-Network/souschef/supabase/client"
)

const hubBuffer = 64

// Option overrides a component New would otherwise build from the
// configuration.
type Option func(*options)

type options struct {
	stores  storage.Stores
	remote  *client.Client
	scanner budget.Scanner
	redis   *redis.Client
}

// WithStores uses stores as the local store. Changes written through it are
// only seen by live subscribers if its publisher is the application hub, so
// callers passing a store should prefer memory or sqlstore built by New.
func WithStores(stores storage.Stores) Option {
	return func(o *options) { o.stores = stores }
}

// WithRemoteClient uses c for the Supabase backend instead of dialing the
// configured project.
func WithRemoteClient(c *client.Client) Option {
	return func(o *options) { o.remote = c }
}

// WithScanner replaces the configured receipt scanner.
func WithScanner(s budget.Scanner) Option {
	return func(o *options) { o.scanner = s }
}

// WithRedisClient uses c for the change bridge.
func WithRedisClient(c *redis.Client) Option {
	return func(o *options) { o.redis = c }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logging.Logger
	config  *config.Config

	Hub      *watch.Hub
	Tokens   *middleware.TokenIssuer
	Store    storage.Stores
	Local    storage.Stores
	Remote   *remote.Store
	Listener *remote.Listener
	Syncer   *mirror.Syncer
	Sync     *mirror.Scheduler

	Accounts    *accounts.Service
	Recipes     *recipes.Service
	Ingredients *ingredients.Service
	Logs        *logs.Service
	Products    *products.Service
	Notes       *notes.Service
	Shopping    *shopping.Service
	Budget      *budget.Service
}

// New builds a fully initialised application from cfg. Stores are opened
// (and migrated when configured) here; background workers start with Start.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logging.New("souschef", cfg.Logging.Level, cfg.Logging.Format)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &Application{
		manager: system.NewManager(),
		log:     log,
		config:  cfg,
		Hub:     watch.NewHub(hubBuffer),
	}
	if err := a.manager.Register(system.CloserService{ServiceName: "watch-hub", Close: func() error {
		a.Hub.Close()
		return nil
	}}); err != nil {
		return nil, err
	}

	var publisher watch.Publisher = a.Hub
	if o.redis == nil && cfg.Redis.Addr != "" {
		o.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := a.manager.Register(system.CloserService{ServiceName: "redis", Close: o.redis.Close}); err != nil {
			return nil, err
		}
	}
	if o.redis != nil {
		bridge := watch.NewRedisBridge(o.redis, a.Hub, cfg.Redis.Channel, log)
		if err := a.manager.Register(bridge); err != nil {
			return nil, err
		}
		publisher = bridge
	}

	local, err := a.openLocal(ctx, o.stores, publisher)
	if err != nil {
		return nil, err
	}
	a.Local = local
	a.Store = local

	if cfg.Remote.Enabled {
		rc := o.remote
		if rc == nil {
			rc, err = client.New(client.Config{URL: cfg.Remote.URL, APIKey: cfg.Remote.APIKey})
			if err != nil {
				return nil, fmt.Errorf("remote client: %w", err)
			}
		}
		if cfg.Remote.Serve {
			a.Remote = remote.New(rc, remote.WithPublisher(publisher))
			a.Store = a.Remote
			a.Listener = remote.NewListener(a.Remote, publisher, log)
			if err := a.manager.Register(a.Listener); err != nil {
				return nil, err
			}
		} else {
			a.Remote = remote.New(rc)
		}
		o.remote = rc
	}

	var images *remote.Images
	if cfg.Remote.Enabled && cfg.Remote.Bucket != "" {
		images = remote.NewImages(o.remote, cfg.Remote.Bucket)
	}

	a.Tokens = middleware.NewTokenIssuer(jwtSecret(cfg, log), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	purger := accounts.StorePurger{Stores: a.Store}
	if images != nil {
		purger.Images = images
	}
	acctOpts := []accounts.Option{
		accounts.WithBcryptCost(cfg.Auth.BcryptCost),
		accounts.WithPurger(purger),
	}
	if cfg.Remote.Enabled && cfg.Remote.UseAuth {
		acctOpts = append(acctOpts, accounts.WithIdentityProvider(accounts.NewSupabaseIdentity(o.remote)))
	}
	a.Accounts = accounts.New(a.Store, a.Tokens, log, acctOpts...)
	a.Recipes = recipes.New(a.Store, a.Store, log)
	a.Ingredients = ingredients.New(a.Store, a.Store, log)
	a.Logs = logs.New(a.Store, a.Store, a.Store, log)
	a.Products = products.New(a.Store, log)
	a.Notes = notes.New(a.Store, log)
	a.Shopping = shopping.New(a.Store, a.Logs, a.Store, a.Store, log)

	scanner := o.scanner
	if scanner == nil {
		scanner, err = newScanner(ctx, cfg.OCR, log)
		if err != nil {
			return nil, err
		}
	}
	var budgetOpts []budget.Option
	if images != nil {
		budgetOpts = append(budgetOpts, budget.WithImages(images))
	}
	a.Budget = budget.New(a.Store, a.Store, scanner, log, budgetOpts...)

	for _, name := range []string{"accounts", "recipes", "ingredients", "logs", "products", "notes", "shopping", "budget"} {
		if err := a.manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	if a.Remote != nil && !cfg.Remote.Serve {
		a.Syncer = mirror.NewSyncer(a.Local, a.Remote, log)
		if cfg.Sync.Enabled {
			mode, err := mirror.ParseMode(cfg.Sync.Mode)
			if err != nil {
				return nil, err
			}
			a.Sync, err = mirror.NewScheduler(a.Syncer, mode, cfg.Sync.Schedule, log)
			if err != nil {
				return nil, err
			}
			if err := a.manager.Register(a.Sync); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func (a *Application) openLocal(ctx context.Context, given storage.Stores, pub watch.Publisher) (storage.Stores, error) {
	if given != nil {
		return given, nil
	}
	db := a.config.Database
	if db.Driver == config.DriverMemory {
		a.log.Warn("database.driver is memory; data is lost on restart")
		return memory.New(memory.WithPublisher(pub)), nil
	}

	sqlCfg := SQLConfig(db)
	if db.AutoMigrate {
		if err := sqlstore.Migrate(ctx, sqlCfg); err != nil {
			return nil, err
		}
	}
	conn, err := sqlstore.Open(ctx, sqlCfg)
	if err != nil {
		return nil, err
	}
	if err := a.manager.Register(system.CloserService{ServiceName: "database", Close: conn.Close}); err != nil {
		conn.Close()
		return nil, err
	}
	a.log.WithField("driver", db.Driver).Info("database opened")
	return sqlstore.New(conn, sqlstore.WithPublisher(pub)), nil
}

// SQLConfig maps the database section onto the SQL store settings.
func SQLConfig(db config.DatabaseConfig) sqlstore.Config {
	return sqlstore.Config{
		Driver:          db.Driver,
		DSN:             db.DSN,
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	}
}

func newScanner(ctx context.Context, cfg config.OCRConfig, log *logging.Logger) (budget.Scanner, error) {
	switch cfg.Provider {
	case config.OCRGenAI:
		s, err := budget.NewGenAIScanner(ctx, cfg.GenAIKey, cfg.GenAIModel, log)
		if err != nil {
			return nil, fmt.Errorf("configure genai scanner: %w", err)
		}
		return s, nil
	case config.OCRHTTP:
		s, err := budget.NewHTTPScanner(&http.Client{Timeout: 30 * time.Second}, cfg.Endpoint, cfg.APIKey, budget.FieldMap(cfg.Fields), log)
		if err != nil {
			return nil, fmt.Errorf("configure ocr scanner: %w", err)
		}
		return s, nil
	default:
		log.Warn("ocr.provider not set; receipt scanning disabled")
		return nil, nil
	}
}

// jwtSecret returns the configured secret or, when none is set, a random one
// that invalidates every token on restart.
func jwtSecret(cfg *config.Config, log *logging.Logger) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("generate jwt secret: %v", err))
	}
	log.Warn("auth.jwt_secret not set; using a random secret, sessions end on restart")
	return hex.EncodeToString(buf)
}

// Config returns the configuration the application was built with.
func (a *Application) Config() *config.Config { return a.config }

// Logger returns the application logger.
func (a *Application) Logger() *logging.Logger { return a.log }

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists registered lifecycle components in start order.
func (a *Application) Services() []string { return a.manager.Names() }

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

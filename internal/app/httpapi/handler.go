package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/R3E-Network/souschef/internal/app"
	svcerrors "github.com/R3E-Network/souschef/internal/errors"
	"github.com/R3E-Network/souschef/internal/httputil"
	"github.com/R3E-Network/souschef/internal/logging"
	"github.com/R3E-Network/souschef/internal/middleware"
)

// publicPaths are served without a session token.
var publicPaths = []string{"/auth/signup", "/auth/signin", "/healthz", "/info", "/metrics"}

// Option configures the handler.
type Option func(*handler)

// WithAuditLog records mutating requests in l.
func WithAuditLog(l *AuditLog) Option {
	return func(h *handler) { h.audit = l }
}

// WithLogger overrides the application logger for HTTP concerns.
func WithLogger(log *logging.Logger) Option {
	return func(h *handler) {
		if log != nil {
			h.log = log
		}
	}
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app       *app.Application
	log       *logging.Logger
	audit     *AuditLog
	auditFile *FileAuditSink
	limiter   *middleware.RateLimiter
	upgrader  websocket.Upgrader
	started   time.Time
}

func newHandler(application *app.Application, opts ...Option) *handler {
	h := &handler{
		app:     application,
		log:     application.Logger(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	cfg := application.Config().Server
	if h.audit == nil {
		var sink AuditSink
		if cfg.AuditLog != "" {
			f, err := OpenAuditFile(cfg.AuditLog)
			if err != nil {
				h.log.WithError(err).WithField("path", cfg.AuditLog).Warn("audit file unavailable; keeping entries in memory only")
			} else {
				sink, h.auditFile = f, f
			}
		}
		h.audit = NewAuditLog(0, sink)
	}
	if cfg.RateLimit > 0 {
		h.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, h.log)
	}
	cors := middleware.NewCORSMiddleware(cfg.Origins())
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || cors.Allows(origin)
		},
	}
	return h
}

// NewHandler returns the API with its middleware chain applied.
func NewHandler(application *app.Application, opts ...Option) http.Handler {
	return newHandler(application, opts...).root()
}

func (h *handler) root() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusNotFound, string(svcerrors.CodeNotFound), "route not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.NewAuthMiddleware(h.app.Tokens, h.log, publicPaths).Handler)
	if h.limiter != nil {
		router.Use(h.limiter.Handler)
	}
	router.Use(h.recordAudit)
	h.routes(router)

	cfg := h.app.Config().Server
	var root http.Handler = router
	root = middleware.NewCORSMiddleware(cfg.Origins()).Handler(root)
	root = middleware.NewTracingMiddleware(h.log).Handler(root)
	return root
}

func (h *handler) routes(router *mux.Router) {
	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/info", h.handleInfo).Methods(http.MethodGet)
	router.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)

	router.HandleFunc("/auth/signup", h.handleSignUp).Methods(http.MethodPost).Name("signup")
	router.HandleFunc("/auth/signin", h.handleSignIn).Methods(http.MethodPost).Name("signin")

	router.HandleFunc("/me", h.handleMe).Methods(http.MethodGet).Name("account")
	router.HandleFunc("/me", h.handleUpdateMe).Methods(http.MethodPut)
	router.HandleFunc("/me", h.handleDeleteMe).Methods(http.MethodDelete)
	router.HandleFunc("/me/activity", h.handleActivity).Methods(http.MethodGet).Name("activity")

	router.HandleFunc("/recipes", h.handleListRecipes).Methods(http.MethodGet).Name("recipes")
	router.HandleFunc("/recipes", h.handleCreateRecipe).Methods(http.MethodPost)
	router.HandleFunc("/recipes/{recipeID}", h.handleGetRecipe).Methods(http.MethodGet).Name("recipe")
	router.HandleFunc("/recipes/{recipeID}", h.handleUpdateRecipe).Methods(http.MethodPut)
	router.HandleFunc("/recipes/{recipeID}", h.handleDeleteRecipe).Methods(http.MethodDelete)
	router.HandleFunc("/recipes/{recipeID}/rating", h.handleRateRecipe).Methods(http.MethodPost)
	router.HandleFunc("/recipes/{recipeID}/ingredients", h.handleListIngredients).Methods(http.MethodGet).Name("ingredients")
	router.HandleFunc("/recipes/{recipeID}/ingredients", h.handleAddIngredient).Methods(http.MethodPost)
	router.HandleFunc("/recipes/{recipeID}/ingredients/{ingredientID}", h.handleUpdateIngredient).Methods(http.MethodPut)
	router.HandleFunc("/recipes/{recipeID}/ingredients/{ingredientID}", h.handleRemoveIngredient).Methods(http.MethodDelete)
	router.HandleFunc("/recipes/{recipeID}/scaled", h.handleScaledIngredients).Methods(http.MethodGet)

	router.HandleFunc("/products", h.handleListProducts).Methods(http.MethodGet).Name("products")
	router.HandleFunc("/products", h.handleCreateProduct).Methods(http.MethodPost)
	router.HandleFunc("/products/{productID}", h.handleGetProduct).Methods(http.MethodGet).Name("product")
	router.HandleFunc("/products/{productID}", h.handleUpdateProduct).Methods(http.MethodPut)
	router.HandleFunc("/products/{productID}", h.handleDeleteProduct).Methods(http.MethodDelete)

	router.HandleFunc("/logs", h.handleListLogs).Methods(http.MethodGet).Name("logs")
	router.HandleFunc("/logs/{date}", h.handleGetLog).Methods(http.MethodGet).Name("log")
	router.HandleFunc("/logs/{date}", h.handleSaveLog).Methods(http.MethodPut)
	router.HandleFunc("/logs/{date}", h.handleDeleteLog).Methods(http.MethodDelete)
	router.HandleFunc("/logs/{date}/rating", h.handleRateLog).Methods(http.MethodPost)

	router.HandleFunc("/notes", h.handleListNotes).Methods(http.MethodGet).Name("notes")
	router.HandleFunc("/notes", h.handleCreateNote).Methods(http.MethodPost)
	router.HandleFunc("/notes/{noteID}", h.handleGetNote).Methods(http.MethodGet).Name("note")
	router.HandleFunc("/notes/{noteID}", h.handleUpdateNote).Methods(http.MethodPut)
	router.HandleFunc("/notes/{noteID}", h.handleDeleteNote).Methods(http.MethodDelete)

	router.HandleFunc("/shopping", h.handleListShopping).Methods(http.MethodGet).Name("shopping")
	router.HandleFunc("/shopping", h.handleCreateShopping).Methods(http.MethodPost)
	router.HandleFunc("/shopping", h.handleReconcileShopping).Methods(http.MethodPut)
	router.HandleFunc("/shopping/clear", h.handleClearShopping).Methods(http.MethodPost)
	router.HandleFunc("/shopping/from-days", h.handleShoppingFromDays).Methods(http.MethodPost)
	router.HandleFunc("/shopping/{itemID}", h.handleUpdateShopping).Methods(http.MethodPut)
	router.HandleFunc("/shopping/{itemID}", h.handleDeleteShopping).Methods(http.MethodDelete)
	router.HandleFunc("/shopping/{itemID}/toggle", h.handleToggleShopping).Methods(http.MethodPost)
	router.HandleFunc("/aggregate", h.handleAggregate).Methods(http.MethodGet).Name("aggregate")

	router.HandleFunc("/receipts", h.handleListReceipts).Methods(http.MethodGet).Name("receipts")
	router.HandleFunc("/receipts", h.handleCreateReceipt).Methods(http.MethodPost)
	router.HandleFunc("/receipts/scan", h.handleScanReceipt).Methods(http.MethodPost)
	router.HandleFunc("/receipts/{receiptID}", h.handleGetReceipt).Methods(http.MethodGet).Name("receipt")
	router.HandleFunc("/receipts/{receiptID}", h.handleUpdateReceipt).Methods(http.MethodPut)
	router.HandleFunc("/receipts/{receiptID}", h.handleDeleteReceipt).Methods(http.MethodDelete)
	router.HandleFunc("/budget", h.handleBudget).Methods(http.MethodGet).Name("budget")

	router.HandleFunc("/live", h.handleLive).Methods(http.MethodGet).Name("live")

	router.HandleFunc("/sync", h.handleSync).Methods(http.MethodPost).Name("sync")
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcerrors.InvalidFormat(name, "must be an integer")
	}
	return v, nil
}

// queryList collects repeated and comma separated values of a parameter.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

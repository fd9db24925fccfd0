package api

import (
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/support-assistant/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/support-assistant/pkg/ratelimit"
)

// Deps are the optional collaborators of the router. Nil fields switch the
// matching feature off.
type Deps struct {
	Health    *health.Checker
	Analytics *analytics.Handler
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	// SpanLogger receives finished request span trees.
	SpanLogger *slog.Logger
}

// NewRouter builds the service's HTTP handler.
//
// Route table:
//
//	GET    /                             service name and version
//	GET    /health                       liveness
//	GET    /health/ready                 dependency checks
//	POST   /tickets                      create ticket
//	POST   /tickets/upload               bulk tickets from .json/.csv
//	GET    /tickets/{id}                 read ticket
//	POST   /documents                    create document
//	POST   /documents/upload             one document per uploaded file
//	GET    /documents/{id}               read document
//	POST   /query                        ranked sources and answer
//	GET    /api/v1/index/stats           index snapshot statistics
//	POST   /api/v1/index/invalidate      force rebuild, purge answer cache
//	GET    /api/v1/analytics             live query analytics
//	GET    /api/v1/analytics/history     persisted analytics snapshots
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → RateLimit → Tracing → Timeout → mux
func NewRouter(h *Handler, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Root)

	checker := deps.Health
	if checker == nil {
		checker = health.NewChecker()
	}
	mux.HandleFunc("GET /health", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mux.HandleFunc("POST /tickets", h.CreateTicket)
	mux.HandleFunc("POST /tickets/upload", h.UploadTickets)
	mux.HandleFunc("GET /tickets/{id}", h.GetTicket)
	mux.HandleFunc("POST /documents", h.CreateDocument)
	mux.HandleFunc("POST /documents/upload", h.UploadDocuments)
	mux.HandleFunc("GET /documents/{id}", h.GetDocument)

	mux.HandleFunc("POST /query", h.Query)

	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/invalidate", h.InvalidateIndex)

	if deps.Analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", deps.Analytics.Stats)
		mux.HandleFunc("GET /api/v1/analytics/history", deps.Analytics.History)
	}

	var chain http.Handler = mux
	if h.cfg.Server.RequestTimeout > 0 {
		chain = middleware.Timeout(h.cfg.Server.RequestTimeout)(chain)
	}
	chain = middleware.Tracing(deps.SpanLogger)(chain)
	if deps.Limiter != nil {
		chain = middleware.RateLimit(deps.Limiter)(chain)
	}
	cors := middleware.DefaultCORSConfig()
	if len(h.cfg.Server.CORSOrigins) > 0 {
		cors.AllowOrigins = h.cfg.Server.CORSOrigins
	}
	chain = middleware.CORS(cors)(chain)
	if deps.Metrics != nil {
		chain = middleware.Metrics(deps.Metrics)(chain)
	}
	chain = middleware.RequestID(chain)
	return chain
}

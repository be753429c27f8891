package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rulesmith/rulesmith/internal/chat"
	"github.com/rulesmith/rulesmith/internal/persist"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/security"
	"github.com/rulesmith/rulesmith/internal/session"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger       *slog.Logger
	Chat         *chat.Service       // Required
	Sessions     *session.Store      // Required
	Rules        *rules.Store        // Required
	Versions     *versioning.Manager // Required
	Persist      *persist.Manager    // Required
	Pool         *pgxpool.Pool       // Optional: nil disables pool stats in /ready
	ArtifactsDir string              // Required: directory generated files are served from
	DocRoots     []string            // Optional: restrict kb builds to these directories
	CORSOrigins  []string            // Allowed origins for CORS
	IsDev        bool                // Relaxes security headers for local HTTP
	TrustProxy   bool                // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst    int                 // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chat == nil {
		return nil, errors.New("chat service is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Rules == nil {
		return nil, errors.New("rule store is required")
	}
	if cfg.Versions == nil {
		return nil, errors.New("version manager is required")
	}
	if cfg.Persist == nil {
		return nil, errors.New("persistence manager is required")
	}
	if cfg.ArtifactsDir == "" {
		return nil, errors.New("artifacts directory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	artifactRoot, err := security.NewPath([]string{cfg.ArtifactsDir})
	if err != nil {
		return nil, err
	}
	var docRoots *security.Path
	if len(cfg.DocRoots) > 0 {
		docRoots, err = security.NewPath(cfg.DocRoots)
		if err != nil {
			return nil, err
		}
	}

	ch := &chatHandler{
		svc:    cfg.Chat,
		screen: security.NewPromptValidator(),
		logger: logger,
	}
	sn := &sessionHandler{svc: cfg.Chat, sessions: cfg.Sessions, logger: logger}
	rh := &rulesHandler{svc: cfg.Chat, store: cfg.Rules, versions: cfg.Versions, logger: logger}
	kb := &kbHandler{svc: cfg.Chat, roots: docRoots, logger: logger}
	cl := &changelogHandler{persist: cfg.Persist, logger: logger}
	ar := &artifactHandler{dir: cfg.ArtifactsDir, root: artifactRoot, logger: logger}

	mux := http.NewServeMux()

	// Conversational workflow
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/rules/parse", ch.parse)

	// Session state and decision flows
	mux.HandleFunc("GET /api/v1/sessions/{id}", sn.get)
	mux.HandleFunc("POST /api/v1/sessions/{id}/analyze", sn.analyze)
	mux.HandleFunc("POST /api/v1/sessions/{id}/generate", sn.generate)

	// Rule store and version history
	mux.HandleFunc("GET /api/v1/rules", rh.list)
	mux.HandleFunc("GET /api/v1/rules/schema", rh.schema)
	mux.HandleFunc("POST /api/v1/rules/import", rh.importTable)
	mux.HandleFunc("GET /api/v1/rules/{id}", rh.get)
	mux.HandleFunc("GET /api/v1/rules/{id}/history", rh.history)
	mux.HandleFunc("GET /api/v1/rules/{id}/versions/summary", rh.versionSummary)
	mux.HandleFunc("POST /api/v1/rules/{id}/generate", rh.generate)

	// Knowledge base
	mux.HandleFunc("POST /api/v1/kb/documents", kb.build)
	mux.HandleFunc("GET /api/v1/kb", kb.stats)

	// Audit trail and artifact downloads
	mux.HandleFunc("GET /api/v1/changelog", cl.list)
	mux.HandleFunc("GET /api/v1/artifacts/{name}", ar.download)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	// CORS must be before RateLimit so preflight OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

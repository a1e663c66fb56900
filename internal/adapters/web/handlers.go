package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"warehouse-ops/internal/app"
)

const defaultMaxUpload = 5 << 20

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	MaxUploadBytes int64
	Logger         *zap.Logger
	Metrics        http.Handler // served at /metrics when set
}

// Handler holds the ApplicationService and the request-independent settings.
type Handler struct {
	svc       app.ApplicationService
	log       *zap.Logger
	jwtSecret string
	maxUpload int64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	h := &Handler{
		svc:       svc,
		log:       opts.Logger,
		jwtSecret: opts.JWTSecret,
		maxUpload: opts.MaxUploadBytes,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		// Uploads: multipart bodies up to MaxUploadBytes, checked inside the handler.
		r.Post("/api/warehouse/manifests", h.reconcile)
		r.Post("/api/warehouse/picklists", h.picklist)
		r.Post("/api/warehouse/assign", h.assign)

		r.Group(func(r chi.Router) {
			r.Use(RequestBodyLimit(1 << 20))

			r.Get("/api/auth/me", h.me)

			r.Get("/api/warehouse/bins", h.listBins)
			r.Get("/api/warehouse/bins/{code}", h.validateBin)
			r.Get("/api/warehouse/bins/{code}/contents", h.binContents)
			r.Post("/api/warehouse/putaway", h.putaway)
			r.Post("/api/warehouse/pickup", h.pickup)
			r.Post("/api/warehouse/dispatch", h.dispatch)
			r.Post("/api/warehouse/dispatch/single", h.dispatchSingle)
			r.Get("/api/warehouse/manifests", h.listReports)
			r.Get("/api/warehouse/shipments/{id}", h.searchShipment)
			r.Get("/api/warehouse/operators", h.listOperators)
			r.Get("/api/warehouse/stats", h.stats)
		})
	})

	return r
}

// health reports liveness; it does not touch the store.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "INVALID_INPUT", http.StatusBadRequest)
		return false
	}
	return true
}

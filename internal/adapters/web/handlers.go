package web

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/arunteja30/poultry-tracker/internal/app"
	"github.com/arunteja30/poultry-tracker/internal/metrics"
	webui "github.com/arunteja30/poultry-tracker/web"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and everything the routes need.
type Handler struct {
	svc        app.ApplicationService
	logger     *zap.Logger
	metrics    *metrics.Metrics
	jwtSecret  string
	renderer   *Renderer
	fileServer http.Handler
}

// NewHandler creates and wires the chi router with all routes. Embed or
// template failures panic: both mean the binary was built wrong.
func NewHandler(svc app.ApplicationService, logger *zap.Logger, m *metrics.Metrics, registry *prometheus.Registry, allowedOrigins, jwtSecret string) http.Handler {
	staticFS, err := fs.Sub(webui.Static, "static")
	if err != nil {
		panic("web/static embed sub-FS failed: " + err.Error())
	}
	renderer, err := NewRenderer()
	if err != nil {
		panic("web template parse failed: " + err.Error())
	}

	h := &Handler{
		svc:        svc,
		logger:     logger,
		metrics:    m,
		jwtSecret:  jwtSecret,
		renderer:   renderer,
		fileServer: http.FileServer(http.FS(staticFS)),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Instrument(m))
	r.Use(Recoverer(logger))
	r.Use(CORS(allowedOrigins))

	// ── Operational endpoints (public) ────────────────────────────────────────
	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// ── Auth (public API) ─────────────────────────────────────────────────────
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/register", h.register)
	r.Post("/api/auth/logout", h.logout)

	// ── Static files served at /static/* ─────────────────────────────────────
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		http.StripPrefix("/static", h.fileServer).ServeHTTP(w, req)
	})

	// ── Browser login/register/logout (public HTML) ───────────────────────────
	r.Get("/login", h.loginPage)
	r.Post("/login", h.loginFormSubmit)
	r.Get("/register", h.registerPage)
	r.Post("/register", h.registerFormSubmit)
	r.Post("/logout", h.logoutAction)

	// ── Protected browser routes (redirect to /login if unauthenticated) ─────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuthBrowser)

		r.Get("/", h.dashboardPage)
		r.Get("/cycles", h.cyclesPage)
		r.Get("/cycles/{cycleID}", h.cycleDetailPage)
		r.Get("/cycles/{cycleID}/entries", h.entriesPage)
		r.Get("/cycles/{cycleID}/entries/export.csv", h.exportEntriesCSV)
		r.Get("/cycles/{cycleID}/feed", h.feedPage)
		r.Get("/cycles/{cycleID}/costs", h.costsPage)
		r.Get("/cycles/{cycleID}/dispatches", h.dispatchesPage)
		r.Get("/cycles/{cycleID}/dispatches/{dispatchID}", h.dispatchDetailPage)
		r.Get("/cycles/{cycleID}/income", h.incomePage)
		r.Get("/cycles/{cycleID}/report.xlsx", h.exportCycleXLSX)
		r.Get("/report", h.reportAssistantPage)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdminBrowser)
			r.Get("/settings/users", h.usersPage)
		})

		// Form actions. Viewers are read-only everywhere.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireWriterBrowser)

			r.Post("/cycles", h.cycleCreateAction)
			r.Post("/cycles/{cycleID}/archive", h.cycleArchiveAction)
			r.Post("/cycles/{cycleID}/unarchive", h.cycleUnarchiveAction)
			r.Post("/cycles/{cycleID}/entries", h.entryCreateAction)
			r.Post("/cycles/{cycleID}/entries/{entryID}/update", h.entryUpdateAction)
			r.Post("/cycles/{cycleID}/entries/{entryID}/delete", h.entryDeleteAction)
			r.Post("/cycles/{cycleID}/entries/import", h.entriesImportAction)
			r.Post("/cycles/{cycleID}/feed", h.feedPurchaseAction)
			r.Post("/cycles/{cycleID}/feed/{purchaseID}/delete", h.feedPurchaseDeleteAction)
			r.Post("/cycles/{cycleID}/costs/medicines", h.medicineCreateAction)
			r.Post("/cycles/{cycleID}/costs/medicines/{medicineID}/delete", h.medicineDeleteAction)
			r.Post("/cycles/{cycleID}/costs/expenses", h.expenseCreateAction)
			r.Post("/cycles/{cycleID}/costs/expenses/{expenseID}/delete", h.expenseDeleteAction)
			r.Post("/cycles/{cycleID}/dispatches", h.dispatchCreateAction)
			r.Post("/cycles/{cycleID}/dispatches/{dispatchID}/weighings", h.weighingAddAction)
			r.Post("/cycles/{cycleID}/dispatches/{dispatchID}/weighings/{weighingID}/delete", h.weighingDeleteAction)
			r.Post("/cycles/{cycleID}/dispatches/{dispatchID}/complete", h.dispatchCompleteAction)
			r.Post("/cycles/{cycleID}/dispatches/{dispatchID}/delete", h.dispatchDeleteAction)
			r.Post("/report/parse", h.reportParseAction)
			r.Post("/report/confirm", h.reportConfirmAction)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdminBrowser)
				r.Post("/cycles/{cycleID}/delete", h.cycleDeleteAction)
				r.Post("/settings/users", h.userCreateAction)
				r.Post("/settings/users/{userID}/active", h.userActiveAction)
			})
		})
	})

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)
		r.Get("/api/dashboard", h.apiDashboard)

		r.Get("/api/cycles", h.apiListCycles)
		r.Get("/api/cycles/active", h.apiActiveCycle)
		r.Get("/api/cycles/{cycleID}", h.apiGetCycle)
		r.Get("/api/cycles/{cycleID}/stats", h.apiCycleStats)
		r.Get("/api/cycles/{cycleID}/entries", h.apiListEntries)
		r.Get("/api/cycles/{cycleID}/entries/export", h.exportEntriesCSV)
		r.Get("/api/cycles/{cycleID}/entries/{entryID}", h.apiGetEntry)
		r.Get("/api/cycles/{cycleID}/feed-purchases", h.apiListFeedPurchases)
		r.Get("/api/cycles/{cycleID}/feed-status", h.apiFeedStatus)
		r.Get("/api/cycles/{cycleID}/medicines", h.apiListMedicines)
		r.Get("/api/cycles/{cycleID}/expenses", h.apiListExpenses)
		r.Get("/api/cycles/{cycleID}/dispatches", h.apiListDispatches)
		r.Get("/api/cycles/{cycleID}/dispatches/{dispatchID}", h.apiGetDispatch)
		r.Get("/api/cycles/{cycleID}/export.xlsx", h.exportCycleXLSX)
		r.Post("/api/cycles/{cycleID}/income-estimate", h.apiEstimateIncome)
		r.Post("/api/report/parse", h.apiParseReport)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireWriter)

			r.Post("/api/cycles", h.apiCreateCycle)
			r.Post("/api/cycles/{cycleID}/archive", h.apiArchiveCycle)
			r.Post("/api/cycles/{cycleID}/unarchive", h.apiUnarchiveCycle)
			r.Post("/api/cycles/{cycleID}/entries", h.apiRecordEntry)
			r.Put("/api/cycles/{cycleID}/entries/{entryID}", h.apiUpdateEntry)
			r.Delete("/api/cycles/{cycleID}/entries/{entryID}", h.apiDeleteEntry)
			r.Post("/api/cycles/{cycleID}/entries/import", h.apiImportEntries)
			r.Post("/api/cycles/{cycleID}/feed-purchases", h.apiAddFeedPurchase)
			r.Delete("/api/cycles/{cycleID}/feed-purchases/{purchaseID}", h.apiDeleteFeedPurchase)
			r.Post("/api/cycles/{cycleID}/medicines", h.apiAddMedicine)
			r.Delete("/api/cycles/{cycleID}/medicines/{medicineID}", h.apiDeleteMedicine)
			r.Post("/api/cycles/{cycleID}/expenses", h.apiAddExpense)
			r.Delete("/api/cycles/{cycleID}/expenses/{expenseID}", h.apiDeleteExpense)
			r.Post("/api/cycles/{cycleID}/dispatches", h.apiCreateDispatch)
			r.Post("/api/cycles/{cycleID}/dispatches/{dispatchID}/weighings", h.apiAddWeighing)
			r.Delete("/api/cycles/{cycleID}/dispatches/{dispatchID}/weighings/{weighingID}", h.apiDeleteWeighing)
			r.Post("/api/cycles/{cycleID}/dispatches/{dispatchID}/complete", h.apiCompleteDispatch)
			r.Delete("/api/cycles/{cycleID}/dispatches/{dispatchID}", h.apiDeleteDispatch)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Delete("/api/cycles/{cycleID}", h.apiDeleteCycle)
				r.Get("/api/users", h.apiListUsers)
				r.Post("/api/users", h.apiCreateUser)
				r.Post("/api/users/{userID}/active", h.apiSetUserActive)
			})
		})
	})

	return r
}

// healthz reports process liveness.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// companyID returns the authenticated company scope. Every route that calls
// it sits behind RequireAuth, which guarantees the claims exist.
func companyID(r *http.Request) int {
	claims := authFromContext(r.Context())
	if claims == nil {
		return 0
	}
	return claims.CompanyID
}

// urlInt extracts a numeric URL parameter.
func urlInt(r *http.Request, key string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, key))
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
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

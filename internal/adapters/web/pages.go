package web

import (
	"errors"
	"net/http"

	"github.com/arunteja30/poultry-tracker/internal/app"
	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ── Login / register pages ────────────────────────────────────────────────────

// loginPage handles GET /login — renders the sign-in page.
// Redirects to the dashboard if already authenticated.
func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	if h.parseAuthCookie(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderPage(w, r, "login", h.buildPageData(r, "Sign In", ""))
}

// loginFormSubmit handles POST /login — form-based login.
func (h *Handler) loginFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, r, "login", h.pageDataWithFlash(r, "Sign In", "", "Invalid form submission.", "error"))
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	session, err := h.svc.AuthenticateUser(r.Context(), username, password)
	if err != nil {
		h.renderPage(w, r, "login", h.pageDataWithFlash(r, "Sign In", "", "Invalid username or password.", "error"))
		return
	}

	if err := h.issueAuthCookie(w, session.User); err != nil {
		h.renderPage(w, r, "login", h.pageDataWithFlash(r, "Sign In", "", "Server error. Please try again.", "error"))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// registerPage handles GET /register — renders the farm signup page.
func (h *Handler) registerPage(w http.ResponseWriter, r *http.Request) {
	if h.parseAuthCookie(r) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderPage(w, r, "register", h.buildPageData(r, "Create Farm", ""))
}

// registerFormSubmit handles POST /register — creates the farm and its
// founding admin, then signs the new user in.
func (h *Handler) registerFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderPage(w, r, "register", h.pageDataWithFlash(r, "Create Farm", "", "Invalid form submission.", "error"))
		return
	}

	session, err := h.svc.RegisterCompany(r.Context(), app.RegisterCompanyRequest{
		FarmName: r.FormValue("farm_name"),
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	})
	if err != nil {
		h.renderPage(w, r, "register", h.pageDataWithFlash(r, "Create Farm", "", formErrorMessage(err), "error"))
		return
	}

	if err := h.issueAuthCookie(w, session.User); err != nil {
		h.renderPage(w, r, "register", h.pageDataWithFlash(r, "Create Farm", "", "Server error. Please try again.", "error"))
		return
	}
	flashRedirect(w, r, "/", "Welcome! Your farm is ready.", "success")
}

// logoutAction handles POST /logout — clears cookie and redirects to login.
func (h *Handler) logoutAction(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

// dashboardPage handles GET /.
func (h *Handler) dashboardPage(w http.ResponseWriter, r *http.Request) {
	d := h.buildPageData(r, "Dashboard", "dashboard")

	summary, err := h.svc.GetDashboard(r.Context(), companyID(r))
	if err != nil {
		d.Flash = "Failed to load dashboard: " + formErrorMessage(err)
		d.FlashKind = "error"
		summary = &core.DashboardSummary{}
	}

	d.Data = summary
	h.renderPage(w, r, "dashboard", d)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// buildPageData constructs PageData from the request context, reading any
// flash message out of the query string.
func (h *Handler) buildPageData(r *http.Request, title, activeNav string) PageData {
	d := PageData{Title: title, ActiveNav: activeNav}

	if claims := authFromContext(r.Context()); claims != nil {
		if user, err := h.svc.GetUser(r.Context(), claims.UserID); err == nil {
			d.Username = user.Username
			d.Role = user.Role
		}
		if company, err := h.svc.GetCompany(r.Context(), claims.CompanyID); err == nil {
			d.FarmName = company.Name
		}
	}

	if msg := r.URL.Query().Get("flash"); msg != "" {
		d.Flash = msg
		d.FlashKind = r.URL.Query().Get("kind")
		if d.FlashKind == "" {
			d.FlashKind = "success"
		}
	}
	return d
}

// pageDataWithFlash is buildPageData with an explicit flash, for re-rendering
// a form after a failed submit.
func (h *Handler) pageDataWithFlash(r *http.Request, title, activeNav, flash, kind string) PageData {
	d := h.buildPageData(r, title, activeNav)
	d.Flash = flash
	d.FlashKind = kind
	return d
}

// formErrorMessage converts a core error into operator-facing flash text.
func formErrorMessage(err error) string {
	var (
		validationErr *core.ValidationError
		conflictErr   *core.ConflictError
		inventoryErr  *core.InsufficientInventoryError
		notFoundErr   *core.NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		return validationErr.Error()
	case errors.As(err, &inventoryErr):
		return inventoryErr.Error()
	case errors.As(err, &conflictErr):
		return conflictErr.Message
	case errors.As(err, &notFoundErr):
		return notFoundErr.Error()
	case errors.Is(err, core.ErrNoActiveCycle):
		return "No active cycle."
	case errors.Is(err, core.ErrInvalidCredentials):
		return "Invalid username or password."
	default:
		return "Something went wrong. Please try again."
	}
}

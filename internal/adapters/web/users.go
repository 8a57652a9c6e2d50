package web

import (
	"net/http"
	"strings"

	"github.com/arunteja30/poultry-tracker/internal/core"
)

// ── Browser page handlers ─────────────────────────────────────────────────────

// usersView is the view model for the user management page.
type usersView struct {
	Users         []core.User
	CurrentUserID int
}

// usersPage handles GET /settings/users (admin only).
func (h *Handler) usersPage(w http.ResponseWriter, r *http.Request) {
	d := h.buildPageData(r, "Users", "users")

	users, err := h.svc.ListUsers(r.Context(), companyID(r))
	if err != nil {
		d.Flash = "Failed to load users: " + formErrorMessage(err)
		d.FlashKind = "error"
	}

	view := usersView{Users: users}
	if claims := authFromContext(r.Context()); claims != nil {
		view.CurrentUserID = claims.UserID
	}

	d.Data = view
	h.renderPage(w, r, "users", d)
}

// ── Form actions ──────────────────────────────────────────────────────────────

// userCreateAction handles POST /settings/users (admin only).
func (h *Handler) userCreateAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, "/settings/users", "Invalid form submission.", "error")
		return
	}

	user, err := h.svc.CreateUser(r.Context(), companyID(r), core.UserInput{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
		Role:     r.FormValue("role"),
	})
	if err != nil {
		flashRedirect(w, r, "/settings/users", formErrorMessage(err), "error")
		return
	}
	flashRedirect(w, r, "/settings/users", "User "+user.Username+" created.", "success")
}

// userActiveAction handles POST /settings/users/{userID}/active (admin only).
// The form posts active=true to re-enable and active=false to disable.
func (h *Handler) userActiveAction(w http.ResponseWriter, r *http.Request) {
	userID, err := urlInt(r, "userID")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		flashRedirect(w, r, "/settings/users", "Invalid form submission.", "error")
		return
	}
	active := r.FormValue("active") == "true"

	if claims := authFromContext(r.Context()); claims != nil && claims.UserID == userID && !active {
		flashRedirect(w, r, "/settings/users", "You cannot deactivate your own account.", "error")
		return
	}

	user, err := h.svc.SetUserActive(r.Context(), companyID(r), userID, active)
	if err != nil {
		flashRedirect(w, r, "/settings/users", formErrorMessage(err), "error")
		return
	}
	if user.IsActive {
		flashRedirect(w, r, "/settings/users", user.Username+" re-enabled.", "success")
		return
	}
	flashRedirect(w, r, "/settings/users", user.Username+" disabled.", "success")
}

// ── API handlers ──────────────────────────────────────────────────────────────

// apiListUsers handles GET /api/users (admin only).
func (h *Handler) apiListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context(), companyID(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	type response struct {
		Users []core.User `json:"users"`
	}
	writeJSON(w, response{Users: users})
}

// apiCreateUser handles POST /api/users (admin only).
func (h *Handler) apiCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.CreateUser(r.Context(), companyID(r), core.UserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, user)
}

// apiSetUserActive handles POST /api/users/{userID}/active (admin only).
func (h *Handler) apiSetUserActive(w http.ResponseWriter, r *http.Request) {
	userID, err := urlInt(r, "userID")
	if err != nil {
		writeError(w, r, "invalid user id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if claims := authFromContext(r.Context()); claims != nil && claims.UserID == userID && !req.Active {
		writeError(w, r, "you cannot deactivate your own account", "CONFLICT", http.StatusConflict)
		return
	}

	user, err := h.svc.SetUserActive(r.Context(), companyID(r), userID, req.Active)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, user)
}

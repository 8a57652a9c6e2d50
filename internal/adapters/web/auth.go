package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arunteja30/poultry-tracker/internal/app"
	"github.com/arunteja30/poultry-tracker/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

type authClaimsKey struct{}

// AuthClaims holds the authenticated user's identity extracted from the JWT.
type AuthClaims struct {
	UserID    int
	CompanyID int
	Role      string
}

// authFromContext returns the auth claims stored in ctx, or nil.
func authFromContext(ctx context.Context) *AuthClaims {
	v, _ := ctx.Value(authClaimsKey{}).(*AuthClaims)
	return v
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID    int    `json:"user_id"`
	CompanyID int    `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// parseAuthCookie validates the auth_token cookie on r and returns the
// claims, or nil when the cookie is absent, expired or tampered with.
func (h *Handler) parseAuthCookie(r *http.Request) *AuthClaims {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return nil
	}

	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	return &AuthClaims{
		UserID:    claims.UserID,
		CompanyID: claims.CompanyID,
		Role:      claims.Role,
	}
}

// issueAuthCookie signs a one-hour JWT for the user and sets it as the
// auth_token cookie.
func (h *Handler) issueAuthCookie(w http.ResponseWriter, user *core.User) error {
	claims := &jwtClaims{
		UserID:    user.ID,
		CompanyID: user.CompanyID,
		Role:      user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return fmt.Errorf("failed to sign auth token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   3600,
	})
	return nil
}

// clearAuthCookie expires the auth_token cookie.
func clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// RequireAuth is chi middleware that validates the auth_token cookie and injects
// AuthClaims into the request context. Returns 401 if the token is absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := h.parseAuthCookie(r)
		if claims == nil {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthBrowser is middleware for HTML page routes. Unlike RequireAuth (which returns 401 JSON),
// this middleware redirects unauthenticated requests to /login with a 302.
func (h *Handler) RequireAuthBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := h.parseAuthCookie(r)
		if claims == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), authClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireWriter rejects viewer accounts. It guards every mutating API route;
// viewers keep full read access.
func (h *Handler) RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := authFromContext(r.Context())
		if claims == nil || claims.Role == core.RoleViewer {
			writeError(w, r, "your account is read-only", "FORBIDDEN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin restricts a route to admin accounts.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := authFromContext(r.Context())
		if claims == nil || claims.Role != core.RoleAdmin {
			writeError(w, r, "admin access required", "FORBIDDEN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWriterBrowser is the HTML counterpart of RequireWriter: viewers are
// bounced back to the dashboard with a flash instead of receiving JSON.
func (h *Handler) RequireWriterBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := authFromContext(r.Context())
		if claims == nil || claims.Role == core.RoleViewer {
			flashRedirect(w, r, "/", "Your account is read-only.", "error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminBrowser is the HTML counterpart of RequireAdmin.
func (h *Handler) RequireAdminBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := authFromContext(r.Context())
		if claims == nil || claims.Role != core.RoleAdmin {
			flashRedirect(w, r, "/", "Admin access required.", "error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionResponse is the JSON shape returned by login and register.
type sessionResponse struct {
	User    *core.User    `json:"user"`
	Company *core.Company `json:"company"`
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, "invalid username or password", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	if err := h.issueAuthCookie(w, session.User); err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSON(w, sessionResponse{User: session.User, Company: session.Company})
}

// register handles POST /api/auth/register — creates a farm with its founding
// admin and logs the new user straight in.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FarmName string `json:"farm_name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.RegisterCompany(r.Context(), app.RegisterCompanyRequest{
		FarmName: req.FarmName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if err := h.issueAuthCookie(w, session.User); err != nil {
		writeError(w, r, "token generation failed", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sessionResponse{User: session.User, Company: session.Company})
}

// logout handles POST /api/auth/logout — clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me — returns the current user's profile.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims := authFromContext(r.Context())
	if claims == nil {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	user, err := h.svc.GetUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, "user not found", "NOT_FOUND", http.StatusNotFound)
		return
	}
	company, err := h.svc.GetCompany(r.Context(), claims.CompanyID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, sessionResponse{User: user, Company: company})
}

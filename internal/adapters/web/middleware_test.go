package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arunteja30/poultry-tracker/internal/core"

	"go.uber.org/zap"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keeps    bool
	}{
		{"absent header gets generated ID", "", false},
		{"valid ID is preserved", "abc-123-DEF", true},
		{"overlong ID is replaced", strings.Repeat("a", 65), false},
		{"unusual characters are replaced", "id with spaces!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctxID = requestIDFromContext(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			RequestID(next).ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("expected X-Request-ID response header")
			}
			if got != ctxID {
				t.Errorf("header %q and context %q disagree", got, ctxID)
			}
			if tt.keeps && got != tt.incoming {
				t.Errorf("expected incoming ID %q to be kept, got %q", tt.incoming, got)
			}
			if !tt.keeps && tt.incoming != "" && got == tt.incoming {
				t.Errorf("expected incoming ID %q to be replaced", tt.incoming)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://farm.example.com")
		rec := httptest.NewRecorder()
		CORS("https://farm.example.com, https://other.example.com")(next).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://farm.example.com" {
			t.Errorf("Allow-Origin = %q, want request origin", got)
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected Allow-Credentials header")
		}
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		CORS("https://farm.example.com")(next).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unexpected Allow-Origin %q", got)
		}
	})

	t.Run("empty config disables CORS", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://farm.example.com")
		rec := httptest.NewRecorder()
		CORS("")(next).ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unexpected Allow-Origin %q", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		reached := false
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://farm.example.com")
		rec := httptest.NewRecorder()
		CORS("https://farm.example.com")(inner).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
		if reached {
			t.Error("preflight should not reach the handler")
		}
	})
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a,b", []string{"a", "b"}},
		{" a , b ,", []string{"a", "b"}},
		{",,", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestAuthCookieRoundTrip(t *testing.T) {
	h := &Handler{jwtSecret: "test-secret"}
	user := &core.User{ID: 7, CompanyID: 3, Role: core.RoleManager}

	rec := httptest.NewRecorder()
	if err := h.issueAuthCookie(rec, user); err != nil {
		t.Fatalf("issueAuthCookie: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != "auth_token" || !cookie.HttpOnly {
		t.Fatalf("unexpected cookie %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	claims := h.parseAuthCookie(req)
	if claims == nil {
		t.Fatal("expected claims from valid cookie")
	}
	if claims.UserID != 7 || claims.CompanyID != 3 || claims.Role != core.RoleManager {
		t.Errorf("claims = %+v", claims)
	}

	t.Run("tampered token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: cookie.Value + "x"})
		if h.parseAuthCookie(req) != nil {
			t.Error("tampered token should not parse")
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		other := &Handler{jwtSecret: "different-secret"}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		if other.parseAuthCookie(req) != nil {
			t.Error("token signed with another secret should not parse")
		}
	})

	t.Run("missing cookie rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if h.parseAuthCookie(req) != nil {
			t.Error("request without cookie should not parse")
		}
	})
}

func TestRoleMiddleware(t *testing.T) {
	h := &Handler{jwtSecret: "test-secret"}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(mw func(http.Handler) http.Handler, role string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if role != "" {
			ctx := context.WithValue(req.Context(), authClaimsKey{}, &AuthClaims{UserID: 1, CompanyID: 1, Role: role})
			req = req.WithContext(ctx)
		}
		rec := httptest.NewRecorder()
		mw(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	tests := []struct {
		name string
		mw   func(http.Handler) http.Handler
		role string
		want int
	}{
		{"writer allows admin", h.RequireWriter, core.RoleAdmin, http.StatusOK},
		{"writer allows manager", h.RequireWriter, core.RoleManager, http.StatusOK},
		{"writer blocks viewer", h.RequireWriter, core.RoleViewer, http.StatusForbidden},
		{"writer blocks anonymous", h.RequireWriter, "", http.StatusForbidden},
		{"admin allows admin", h.RequireAdmin, core.RoleAdmin, http.StatusOK},
		{"admin blocks manager", h.RequireAdmin, core.RoleManager, http.StatusForbidden},
		{"admin blocks viewer", h.RequireAdmin, core.RoleViewer, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serve(tt.mw, tt.role); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	h := &Handler{logger: zap.NewNop()}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &core.ValidationError{Field: "mortality", Message: "must not be negative"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"bad credentials", core.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not found", &core.NotFoundError{Resource: "cycle", ID: 4}, http.StatusNotFound, "NOT_FOUND"},
		{"no active cycle", core.ErrNoActiveCycle, http.StatusNotFound, "NOT_FOUND"},
		{"insufficient stock", &core.InsufficientInventoryError{AttemptedBags: 9, AvailableBags: 4, ShortageBags: 5}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"conflict", &core.ConflictError{Message: "an active cycle already exists"}, http.StatusConflict, "CONFLICT"},
		{"unknown error is opaque", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cycles", nil)
			rec := httptest.NewRecorder()
			h.serviceError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if tt.wantCode == "INTERNAL_ERROR" && strings.Contains(body.Error, "pq:") {
				t.Errorf("internal detail leaked to client: %q", body.Error)
			}
		})
	}
}

func TestFlashRedirect(t *testing.T) {
	t.Run("plain target", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/cycles", nil)
		rec := httptest.NewRecorder()
		flashRedirect(rec, req, "/cycles/4", "Cycle #4 started.", "success")

		if rec.Code != http.StatusSeeOther {
			t.Errorf("status = %d, want 303", rec.Code)
		}
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "/cycles/4?flash=") || !strings.Contains(loc, "kind=success") {
			t.Errorf("unexpected Location %q", loc)
		}
	})

	t.Run("target with query", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/entries", nil)
		rec := httptest.NewRecorder()
		flashRedirect(rec, req, "/entries?edit=2", "Saved.", "success")

		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "/entries?edit=2&flash=") {
			t.Errorf("unexpected Location %q", loc)
		}
	})
}

func TestPageDataRoles(t *testing.T) {
	tests := []struct {
		role     string
		canWrite bool
		isAdmin  bool
	}{
		{core.RoleAdmin, true, true},
		{core.RoleManager, true, false},
		{core.RoleViewer, false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		d := PageData{Role: tt.role}
		if d.CanWrite() != tt.canWrite {
			t.Errorf("CanWrite(%q) = %v, want %v", tt.role, d.CanWrite(), tt.canWrite)
		}
		if d.IsAdmin() != tt.isAdmin {
			t.Errorf("IsAdmin(%q) = %v, want %v", tt.role, d.IsAdmin(), tt.isAdmin)
		}
	}
}

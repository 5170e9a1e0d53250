package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tourdesk/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func init() { gin.SetMode(gin.TestMode) }

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims(role string) (jwt.MapClaims, uuid.UUID, uuid.UUID) {
	user, company := uuid.New(), uuid.New()
	return jwt.MapClaims{
		"sub":        user.String(),
		"company_id": company.String(),
		"role":       role,
		"tz":         "UTC",
		"exp":        time.Now().Add(time.Hour).Unix(),
	}, user, company
}

func serve(auth *Auth, header string, roles ...string) (*httptest.ResponseRecorder, service.Scope) {
	var got service.Scope
	r := gin.New()
	r.GET("/x", auth.RequireRole(roles...), func(c *gin.Context) {
		got, _ = ScopeFrom(c)
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, got
}

func TestRequireRoleBuildsScope(t *testing.T) {
	auth := NewAuth("secret", false)
	claims, user, company := validClaims("admin")

	w, scope := serve(auth, "Bearer "+sign(t, "secret", claims), "owner", "admin")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if scope.CompanyID != company || scope.UserID == nil || *scope.UserID != user || scope.Role != "admin" {
		t.Fatalf("scope %+v", scope)
	}
}

func TestRequireRoleRejects(t *testing.T) {
	auth := NewAuth("secret", false)
	staff, _, _ := validClaims("staff")
	expired, _, _ := validClaims("owner")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, "other", staff), http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "secret", expired), http.StatusUnauthorized},
		{"role", "Bearer " + sign(t, "secret", staff), http.StatusForbidden},
	}
	for _, tc := range cases {
		w, _ := serve(auth, tc.header, "owner", "admin")
		if w.Code != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestCompanyOf(t *testing.T) {
	auth := NewAuth("secret", false)
	claims, _, company := validClaims("staff")
	got, err := auth.CompanyOf(sign(t, "secret", claims))
	if err != nil || got != company {
		t.Fatalf("got %s %v", got, err)
	}
	if _, err := auth.CompanyOf("garbage"); err == nil {
		t.Fatal("expected error")
	}
}

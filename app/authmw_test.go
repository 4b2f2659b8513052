package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"github.com/gin-gonic/gin"
)

// asUser 模拟 AuthRequired 写入的上下文
func asUser(id uint, role string, admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != 0 {
			c.Set(ctxUserID, id)
			c.Set(ctxRole, role)
			c.Set(ctxIsAdmin, admin)
			c.Set(ctxDeptID, uint(3))
		}
		c.Next()
	}
}

func serve(t *testing.T, mw ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", handlers...)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireRole(t *testing.T) {
	staff := RequireRole(models.RoleAdmin, models.RoleDepartmentManager)
	cases := []struct {
		name  string
		id    uint
		role  string
		admin bool
		want  int
	}{
		{"anonymous", 0, "", false, http.StatusUnauthorized},
		{"employee", 1, models.RoleEmployee, false, http.StatusForbidden},
		{"manager", 2, models.RoleDepartmentManager, false, http.StatusNoContent},
		{"admin email", 4, models.RoleEmployee, true, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := serve(t, asUser(tc.id, tc.role, tc.admin), staff); got != tc.want {
				t.Fatalf("code = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAdminOnlyRejectsManager(t *testing.T) {
	if got := serve(t, asUser(2, models.RoleDepartmentManager, false), AdminOnly()); got != http.StatusForbidden {
		t.Fatalf("code = %d", got)
	}
}

func TestContextHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	asUser(9, models.RoleDepartmentManager, false)(c)
	if CurrentUserID(c) != 9 || CurrentRole(c) != models.RoleDepartmentManager || CurrentDepartmentID(c) != 3 || IsAdmin(c) {
		t.Fatalf("helpers = %d %s %d %v", CurrentUserID(c), CurrentRole(c), CurrentDepartmentID(c), IsAdmin(c))
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("WEB_ORIGIN", "https://tools.example.com")
	t.Setenv("RP_ORIGINS", "")
	t.Setenv("ADMIN_EMAILS", " Boss@Example.com , ops@example.com")
	t.Setenv("APP_SESSION_TTL_SECONDS", "3600")
	t.Setenv("LAST_SEEN_THROTTLE_SECONDS", "nope")

	cfg := LoadConfig()
	if len(cfg.RPOrigins) != 1 || cfg.RPOrigins[0] != "https://tools.example.com" {
		t.Fatalf("rp origins = %v", cfg.RPOrigins)
	}
	if len(cfg.AdminEmails) != 2 || cfg.AdminEmails[0] != "boss@example.com" {
		t.Fatalf("admin emails = %v", cfg.AdminEmails)
	}
	if cfg.AppSessionTTL != time.Hour {
		t.Fatalf("app session ttl = %s", cfg.AppSessionTTL)
	}
	if cfg.LastSeenThrottle != 5*time.Minute {
		t.Fatalf("bad value should fall back, got %s", cfg.LastSeenThrottle)
	}
}

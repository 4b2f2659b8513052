package app

import (
	"net/http"
	"strings"

	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"
	"Gin_postgres_redis_tool_lending/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// context keys
const (
	ctxUserID  = "userID"
	ctxRole    = "role"
	ctxIsAdmin = "isAdmin"
	ctxDeptID  = "departmentID"
)

func AuthRequired(appSess *session.AppSessionStore, repo *db.Repo, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// 确认用户仍存在且启用，角色每次现查，改角色立即生效
		u, err := repo.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil || !u.IsActive {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		role := u.RoleName()
		isAdmin := role == models.RoleAdmin
		email := strings.ToLower(u.Email)
		for _, admin := range cfg.AdminEmails {
			if email == admin {
				isAdmin = true
			}
		}

		c.Set(ctxUserID, u.ID)
		c.Set(ctxRole, role)
		c.Set(ctxIsAdmin, isAdmin)
		c.Set(ctxDeptID, u.DepartmentID)
		c.Next()
	}
}

// RequireRole 放行角色在 roles 里的用户；ADMIN_EMAILS 里的用户总是放行
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxUserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if IsAdmin(c) {
			c.Next()
			return
		}
		role := CurrentRole(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
	}
}

func AdminOnly() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }

func CurrentUserID(c *gin.Context) uint {
	v, _ := c.Get(ctxUserID)
	id, _ := v.(uint)
	return id
}

func CurrentRole(c *gin.Context) string {
	v, _ := c.Get(ctxRole)
	r, _ := v.(string)
	return r
}

func CurrentDepartmentID(c *gin.Context) uint {
	v, _ := c.Get(ctxDeptID)
	id, _ := v.(uint)
	return id
}

func IsAdmin(c *gin.Context) bool {
	v, _ := c.Get(ctxIsAdmin)
	b, _ := v.(bool)
	return b
}

package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

// POST /auth/login  {email, password}
func (s *Srv) PasswordLogin(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := s.Repo.FindUserByEmail(ctx, in.Email)
	if err != nil || u.PasswordHash == "" || !db.CheckPassword(u.PasswordHash, in.Password) {
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid email or password"})
		return
	}
	if !u.IsActive {
		c.JSON(http.StatusForbidden, app.H{"error": "account disabled"})
		return
	}
	if err := s.issueSession(ctx, c, u.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "user": u})
}

// POST /auth/logout
func (s *Srv) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = s.AppSess.Delete(c.Request.Context(), ck.Value)
	}
	s.writeSessionCookie(c.Writer, "", -1)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /auth/whoami：当前用户 + 角色 + passkey 数
func (s *Srv) WhoAmI(c *gin.Context) {
	uid := app.CurrentUserID(c)
	u, err := s.Repo.FindUserByID(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	credCount, _ := s.Repo.CountCredentials(c.Request.Context(), uid)
	c.JSON(http.StatusOK, app.H{
		"user":        u,
		"role":        app.CurrentRole(c),
		"isAdmin":     app.IsAdmin(c),
		"credentials": credCount,
	})
}

// GET /api/credentials：自己的 passkey 列表
func (s *Srv) ListCredentials(c *gin.Context) {
	cs, err := s.Repo.LoadUserCredentials(c.Request.Context(), app.CurrentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"credentials": cs})
}

// DELETE /api/credentials/:id
func (s *Srv) DeleteCredential(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.Repo.DeleteCredential(c.Request.Context(), app.CurrentUserID(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

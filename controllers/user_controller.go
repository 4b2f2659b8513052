package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/session"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	repo    *db.Repo
	appSess *session.AppSessionStore
	cfg     app.Config
}

func GetUserController(repo *db.Repo, appSess *session.AppSessionStore, cfg app.Config) *UserController {
	return &UserController{repo: repo, appSess: appSess, cfg: cfg}
}

// GET /api/users?q=alice&departmentId=2&role=EMPLOYEE&active=true&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := db.UserQuery{Q: c.Query("q"), RoleName: c.Query("role")}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Size, _ = strconv.Atoi(c.DefaultQuery("size", "20"))
	dept, ok := queryID(c, "departmentId")
	if !ok {
		return
	}
	q.DepartmentID = dept
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": "invalid active"})
			return
		}
		q.Active = &b
	}

	res, err := uc.repo.ListUsers(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

type createUserReq struct {
	Firstname    string `json:"firstname" binding:"required"`
	Lastname     string `json:"lastname" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	IsActive     *bool  `json:"isActive"`
	RoleID       uint   `json:"roleId" binding:"required"`
	DepartmentID uint   `json:"departmentId" binding:"required"`
}

// POST /api/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var in createUserReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	u, err := uc.repo.CreateUser(c.Request.Context(), db.NewUser{
		Firstname:    in.Firstname,
		Lastname:     in.Lastname,
		Email:        in.Email,
		Password:     in.Password,
		IsActive:     active,
		RoleID:       in.RoleID,
		DepartmentID: in.DepartmentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

type updateUserReq struct {
	Firstname    *string `json:"firstname"`
	Lastname     *string `json:"lastname"`
	Email        *string `json:"email" binding:"omitempty,email"`
	Password     *string `json:"password" binding:"omitempty,min=8"`
	IsActive     *bool   `json:"isActive"`
	RoleID       *uint   `json:"roleId"`
	DepartmentID *uint   `json:"departmentId"`
}

// PATCH /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in updateUserReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	u, err := uc.repo.UpdateUser(c.Request.Context(), id, db.UserUpdate{
		Firstname:    in.Firstname,
		Lastname:     in.Lastname,
		Email:        in.Email,
		Password:     in.Password,
		IsActive:     in.IsActive,
		RoleID:       in.RoleID,
		DepartmentID: in.DepartmentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	// 停用即踢下线
	if in.IsActive != nil && !*in.IsActive {
		uc.revokeSessions(c, id)
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	// 不允许删除自己，避免锁死
	if app.CurrentUserID(c) == id {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
		return
	}

	target, err := uc.repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	email := strings.ToLower(target.Email)
	for _, admin := range uc.cfg.AdminEmails {
		if email == admin {
			c.JSON(http.StatusForbidden, app.H{"error": "cannot delete an admin"})
			return
		}
	}

	if err := uc.repo.DeleteUserByID(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	uc.revokeSessions(c, id)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// revokeSessions 撤销该用户的所有登录会话；失败只记日志，会话最迟 TTL 后失效
func (uc *UserController) revokeSessions(c *gin.Context, id uint) {
	n, err := uc.appSess.RevokeAllForUser(c.Request.Context(), id)
	if err != nil {
		log.Printf("[session] revoke sessions of user %d failed: %v", id, err)
		return
	}
	if n > 0 {
		log.Printf("[session] revoked %d session(s) of user %d", n, id)
	}
}

// GET /api/roles
func (uc *UserController) ListRoles(c *gin.Context) {
	rs, err := uc.repo.ListRoles(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"roles": rs})
}

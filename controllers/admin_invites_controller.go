package controllers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_tool_lending/app"

	"github.com/gin-gonic/gin"
)

type InviteController struct {
	*Srv
	Invites *app.Invites
}

func GetInviteController(s *Srv) *InviteController {
	return &InviteController{Srv: s, Invites: app.NewInvites(s.Repo, s.Cfg)}
}

// POST /admin/invites {userId, expiresDays?}
func (ic *InviteController) CreateInvite(c *gin.Context) {
	var in struct {
		UserID      uint `json:"userId" binding:"required"`
		ExpiresDays int  `json:"expiresDays" binding:"omitempty,min=1,max=30"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	if in.ExpiresDays == 0 {
		in.ExpiresDays = 1
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	createdBy := strconv.FormatUint(uint64(app.CurrentUserID(c)), 10)
	issued, err := ic.Invites.Issue(ctx, in.UserID, time.Duration(in.ExpiresDays)*24*time.Hour, createdBy)
	if err != nil {
		writeError(c, err)
		return
	}
	// 开发环境直接用返回的 link
	c.JSON(http.StatusCreated, issued)
}

// GET /admin/invites?userId=
func (ic *InviteController) ListInvites(c *gin.Context) {
	uid, ok := queryID(c, "userId")
	if !ok {
		return
	}
	out, err := ic.Repo.ListInvites(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": out})
}

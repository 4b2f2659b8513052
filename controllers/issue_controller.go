package controllers

import (
	"net/http"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

type IssueController struct{ *Srv }

func GetIssueController(s *Srv) *IssueController { return &IssueController{Srv: s} }

// POST /api/issues  报告人固定为当前用户
func (ic *IssueController) Create(c *gin.Context) {
	var in struct {
		ToolItemID    uint    `json:"toolItemId" binding:"required"`
		Title         string  `json:"title" binding:"required"`
		Description   *string `json:"description"`
		RelatedLoanID *uint   `json:"relatedLoanId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	is, err := ic.Repo.CreateIssue(c.Request.Context(), db.NewIssue{
		ToolItemID:       in.ToolItemID,
		ReportedByUserID: app.CurrentUserID(c),
		Title:            in.Title,
		Description:      in.Description,
		RelatedLoanID:    in.RelatedLoanID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"issue": is})
}

// GET /api/issues?toolItemId=&status=
func (ic *IssueController) List(c *gin.Context) {
	item, ok := queryID(c, "toolItemId")
	if !ok {
		return
	}
	out, err := ic.Repo.ListIssues(c.Request.Context(), db.IssueFilter{ToolItemID: item, Status: c.Query("status")})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"issues": out})
}

func (ic *IssueController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	is, err := ic.Repo.GetIssue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"issue": is})
}

// PATCH /api/issues/:id/status {status}
func (ic *IssueController) SetStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	is, err := ic.Repo.SetIssueStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"issue": is})
}

func (ic *IssueController) Resolve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	is, err := ic.Repo.ResolveIssue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"issue": is})
}

func (ic *IssueController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := ic.Repo.DeleteIssue(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

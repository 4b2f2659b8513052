package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"

	"github.com/gin-gonic/gin"
)

type LoanRequestController struct{ *Srv }

func GetLoanRequestController(s *Srv) *LoanRequestController { return &LoanRequestController{Srv: s} }

// canSee：管理员看全部，部门经理看本部门，其他人只看自己的
func (s *Srv) canSee(ctx context.Context, c *gin.Context, ownerID uint) (bool, error) {
	if app.IsAdmin(c) || ownerID == app.CurrentUserID(c) {
		return true, nil
	}
	if app.CurrentRole(c) != models.RoleDepartmentManager {
		return false, nil
	}
	owner, err := s.Repo.FindUserByID(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return owner.DepartmentID == app.CurrentDepartmentID(c), nil
}

type requestLineReq struct {
	ToolID   uint `json:"toolId" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,min=1"`
}

// POST /api/loan-requests  申请人固定为当前用户
func (rc *LoanRequestController) Create(c *gin.Context) {
	var in struct {
		DueAt       time.Time        `json:"dueAt" binding:"required"`
		LoanStartAt *time.Time       `json:"loanStartAt"`
		Comment     *string          `json:"comment"`
		Items       []requestLineReq `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	lines := make([]db.RequestLine, 0, len(in.Items))
	for _, it := range in.Items {
		lines = append(lines, db.RequestLine{ToolID: it.ToolID, Quantity: it.Quantity})
	}
	req, err := rc.Repo.CreateLoanRequest(c.Request.Context(), db.NewLoanRequest{
		RequesterUserID: app.CurrentUserID(c),
		DueAt:           in.DueAt,
		LoanStartAt:     in.LoanStartAt,
		Comment:         in.Comment,
		Lines:           lines,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"request": req})
}

// GET /api/loan-requests?requesterId=&departmentId=&status=
func (rc *LoanRequestController) List(c *gin.Context) {
	var f db.LoanRequestFilter
	var ok bool
	if f.RequesterUserID, ok = queryID(c, "requesterId"); !ok {
		return
	}
	if f.DepartmentID, ok = queryID(c, "departmentId"); !ok {
		return
	}
	f.Status = c.Query("status")

	switch {
	case app.IsAdmin(c):
	case app.CurrentRole(c) == models.RoleDepartmentManager:
		dept := app.CurrentDepartmentID(c)
		f.DepartmentID = &dept
	default:
		me := app.CurrentUserID(c)
		f.RequesterUserID = &me
		f.DepartmentID = nil
	}

	reqs, err := rc.Repo.ListLoanRequests(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"requests": reqs})
}

func (rc *LoanRequestController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	req, err := rc.Repo.GetLoanRequest(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	visible, err := rc.canSee(c.Request.Context(), c, req.RequesterUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, app.H{"request": req})
}

// POST /api/loan-requests/:id/decision {decision: APPROVED|REJECTED, comment?}
func (rc *LoanRequestController) Decide(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Decision string  `json:"decision" binding:"required"`
		Comment  *string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	req, err := rc.Repo.GetLoanRequest(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	visible, err := rc.canSee(ctx, c, req.RequesterUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}

	res, err := rc.Repo.DecideLoanRequest(ctx, id, app.CurrentUserID(c), in.Decision, in.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/loan-requests/:id/cancel  申请人本人或管理员
func (rc *LoanRequestController) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	req, err := rc.Repo.GetLoanRequest(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !app.IsAdmin(c) && req.RequesterUserID != app.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	req, err = rc.Repo.CancelLoanRequest(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"request": req})
}

func (rc *LoanRequestController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := rc.Repo.DeleteLoanRequest(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

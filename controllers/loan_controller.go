package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func GetLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// POST /api/loans  直接借出指定实物（不经申请）
func (lc *LoanController) Create(c *gin.Context) {
	var in struct {
		BorrowerUserID uint      `json:"borrowerUserId" binding:"required"`
		DueAt          time.Time `json:"dueAt" binding:"required"`
		Comment        *string   `json:"comment"`
		ToolItemIDs    []uint    `json:"toolItemIds" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	loan, err := lc.Repo.CreateLoan(c.Request.Context(), db.NewLoan{
		BorrowerUserID: in.BorrowerUserID,
		IssuedByUserID: app.CurrentUserID(c),
		DueAt:          in.DueAt,
		Comment:        in.Comment,
		ToolItemIDs:    in.ToolItemIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"loan": loan})
}

// GET /api/loans?borrowerId=&toolItemId=&status=open|returned
func (lc *LoanController) List(c *gin.Context) {
	var f db.LoanFilter
	var ok bool
	if f.BorrowerUserID, ok = queryID(c, "borrowerId"); !ok {
		return
	}
	if f.ToolItemID, ok = queryID(c, "toolItemId"); !ok {
		return
	}
	f.Status = c.Query("status")
	if !app.IsAdmin(c) && app.CurrentRole(c) != models.RoleDepartmentManager {
		me := app.CurrentUserID(c)
		f.BorrowerUserID = &me
	}
	ls, err := lc.Repo.ListLoans(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": ls})
}

// GET /api/loans/mine  当前用户手上未归还的
func (lc *LoanController) Mine(c *gin.Context) {
	me := app.CurrentUserID(c)
	ls, err := lc.Repo.ListLoans(c.Request.Context(), db.LoanFilter{BorrowerUserID: &me, Status: "open"})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": ls})
}

// GET /api/loans/overdue?departmentId=  部门经理只看本部门
func (lc *LoanController) Overdue(c *gin.Context) {
	dept, ok := queryID(c, "departmentId")
	if !ok {
		return
	}
	if !app.IsAdmin(c) {
		d := app.CurrentDepartmentID(c)
		dept = &d
	}
	ls, err := lc.Repo.ListOverdueLoans(c.Request.Context(), dept)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": ls})
}

func (lc *LoanController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	loan, err := lc.Repo.GetLoan(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	visible, err := lc.canSee(c.Request.Context(), c, loan.BorrowerUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !visible {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": loan})
}

type itemReturnReq struct {
	LoanItemID  uint    `json:"loanItemId" binding:"required"`
	Comment     *string `json:"comment"`
	ConditionID *uint   `json:"conditionId"`
}

// POST /api/loans/:id/return {items: [{loanItemId, comment?, conditionId?}]}
func (lc *LoanController) Return(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Items []itemReturnReq `json:"items" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	rets := make([]db.ItemReturn, 0, len(in.Items))
	for _, it := range in.Items {
		rets = append(rets, db.ItemReturn{LoanItemID: it.LoanItemID, Comment: it.Comment, ConditionID: it.ConditionID})
	}
	loan, err := lc.Repo.ReturnLoan(c.Request.Context(), id, app.CurrentUserID(c), rets)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loan": loan})
}

func (lc *LoanController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := lc.Repo.DeleteLoan(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

type DepartmentController struct{ *Srv }

func GetDepartmentController(s *Srv) *DepartmentController { return &DepartmentController{Srv: s} }

// parseLead 区分“没传 leadUserId”和“显式传 null”
func parseLead(raw json.RawMessage) (set bool, id *uint, err error) {
	if len(raw) == 0 {
		return false, nil, nil
	}
	if string(raw) == "null" {
		return true, nil, nil
	}
	var v uint
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, nil, err
	}
	return true, &v, nil
}

func (dc *DepartmentController) List(c *gin.Context) {
	ds, err := dc.Repo.ListDepartments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"departments": ds})
}

func (dc *DepartmentController) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := dc.Repo.GetDepartment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"department": d})
}

// POST /api/departments {name, leadUserId?}
func (dc *DepartmentController) Create(c *gin.Context) {
	var in struct {
		Name       string `json:"name" binding:"required"`
		LeadUserID *uint  `json:"leadUserId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	d, err := dc.Repo.CreateDepartment(c.Request.Context(), in.Name, in.LeadUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"department": d})
}

// PATCH /api/departments/:id {name?, leadUserId?: id|null}
func (dc *DepartmentController) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Name       *string         `json:"name"`
		LeadUserID json.RawMessage `json:"leadUserId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	set, lead, err := parseLead(in.LeadUserID)
	if err != nil {
		badRequest(c, err)
		return
	}
	d, err := dc.Repo.UpdateDepartment(c.Request.Context(), id, db.DepartmentUpdate{
		Name:       in.Name,
		LeadSet:    set,
		LeadUserID: lead,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"department": d})
}

// PUT /api/departments/:id/lead {leadUserId: id|null}
func (dc *DepartmentController) SetLead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		LeadUserID *uint `json:"leadUserId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	d, err := dc.Repo.SetDepartmentLead(c.Request.Context(), id, in.LeadUserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"department": d})
}

func (dc *DepartmentController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := dc.Repo.DeleteDepartment(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/leadership-log?departmentId=&limit=
func (dc *DepartmentController) LeadershipLog(c *gin.Context) {
	dept, ok := queryID(c, "departmentId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := dc.Repo.ListLeadershipLogs(c.Request.Context(), dept, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"entries": logs})
}

package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

type ToolController struct{ *Srv }

func GetToolController(s *Srv) *ToolController { return &ToolController{Srv: s} }

// GET /api/lookups：角色 / 状态 / 成色等下拉数据
func (tc *ToolController) Lookups(c *gin.Context) {
	l, err := tc.Repo.ListLookups(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// ----- categories -----

func (tc *ToolController) ListCategories(c *gin.Context) {
	cs, err := tc.Repo.ListToolCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"categories": cs})
}

func (tc *ToolController) CreateCategory(c *gin.Context) {
	var in struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := tc.Repo.CreateToolCategory(c.Request.Context(), in.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"category": cat})
}

// ----- tools -----

func (tc *ToolController) ListTools(c *gin.Context) {
	cat, ok := queryID(c, "categoryId")
	if !ok {
		return
	}
	ts, err := tc.Repo.ListTools(c.Request.Context(), cat)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"tools": ts})
}

func (tc *ToolController) GetTool(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	t, err := tc.Repo.GetTool(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"tool": t})
}

func (tc *ToolController) CreateTool(c *gin.Context) {
	var in struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		CategoryID  *uint  `json:"categoryId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := tc.Repo.CreateTool(c.Request.Context(), db.NewTool{
		Name: in.Name, Description: in.Description, CategoryID: in.CategoryID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"tool": t})
}

func (tc *ToolController) UpdateTool(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		CategoryID  *uint   `json:"categoryId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	t, err := tc.Repo.UpdateTool(c.Request.Context(), id, db.ToolUpdate{
		Name: in.Name, Description: in.Description, CategoryID: in.CategoryID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"tool": t})
}

func (tc *ToolController) DeleteTool(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := tc.Repo.DeleteTool(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/tools/:id/availability
func (tc *ToolController) Availability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := tc.Repo.ToolAvailability(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"toolId": id, "counts": rows})
}

// ----- tool items -----

func (tc *ToolController) ListItems(c *gin.Context) {
	var f db.ToolItemFilter
	var ok bool
	if f.ToolID, ok = queryID(c, "toolId"); !ok {
		return
	}
	if f.StatusID, ok = queryID(c, "statusId"); !ok {
		return
	}
	if f.ConditionID, ok = queryID(c, "conditionId"); !ok {
		return
	}
	f.InventoryNo = c.Query("inventoryNo")
	items, err := tc.Repo.ListToolItems(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

// GET /api/admin/tool-items?q=&toolId=&status=&page=&size=
func (tc *ToolController) AdminListItems(c *gin.Context) {
	toolID, ok := queryID(c, "toolId")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	res, err := tc.Repo.ListToolItemsWithCurrentLoan(c.Request.Context(), db.AdminToolItemsQuery{
		Q:      c.Query("q"),
		ToolID: toolID,
		Status: c.Query("status"),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (tc *ToolController) GetItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	it, err := tc.Repo.GetToolItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

func (tc *ToolController) CreateItem(c *gin.Context) {
	var in struct {
		InventoryNo string `json:"inventoryNo" binding:"required"`
		Description string `json:"description"`
		ToolID      uint   `json:"toolId" binding:"required"`
		ConditionID *uint  `json:"conditionId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := tc.Repo.CreateToolItem(c.Request.Context(), db.NewToolItem{
		InventoryNo: in.InventoryNo,
		Description: in.Description,
		ToolID:      in.ToolID,
		ConditionID: in.ConditionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"item": it})
}

// PATCH /api/tool-items/:id；status 字段不接受，改状态走借还 / 报废
func (tc *ToolController) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		InventoryNo *string `json:"inventoryNo"`
		Description *string `json:"description"`
		ConditionID *uint   `json:"conditionId"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	it, err := tc.Repo.UpdateToolItem(c.Request.Context(), id, db.ToolItemUpdate{
		InventoryNo: in.InventoryNo,
		Description: in.Description,
		ConditionID: in.ConditionID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

func (tc *ToolController) RetireItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	it, err := tc.Repo.RetireToolItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

func (tc *ToolController) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := tc.Repo.DeleteToolItem(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/tool-items/:id/history
func (tc *ToolController) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := tc.Repo.ToolItemLoanHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"toolItemId": id, "history": rows})
}

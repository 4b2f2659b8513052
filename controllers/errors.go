package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
)

// statusFor 把 db 的业务错误映射成 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrConflict), errors.Is(err, db.ErrInsufficientAvailability):
		return http.StatusConflict
	case errors.Is(err, db.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if errors.Is(err, db.ErrConfiguration) {
		log.Printf("[config] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(code, app.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
}

// paramID 解析路径里的数字 id，失败时已写好 400
func paramID(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}

// queryID 可选的数字查询参数；空串返回 nil
func queryID(c *gin.Context, name string) (*uint, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	n, err := strconv.ParseUint(v, 10, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": "invalid " + name})
		return nil, false
	}
	id := uint(n)
	return &id, true
}

package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// useCORS 前端 origin 加上所有 RP origin；会话走 cookie，必须带 credentials
func useCORS(r *gin.Engine, cfg Config) {
	origins := []string{cfg.WebOrigin}
	for _, o := range cfg.RPOrigins {
		if o != cfg.WebOrigin {
			origins = append(origins, o)
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

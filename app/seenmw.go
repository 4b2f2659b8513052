// app/seenmw.go
package app

import (
	"strconv"
	"time"

	"Gin_postgres_redis_tool_lending/db"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// TouchLastSeen 每个用户每 throttle 最多写一次 last_seen_at，节流键放 Redis
func TouchLastSeen(repo *db.Repo, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := CurrentUserID(c)
		if uid == 0 {
			c.Next()
			return
		}

		key := "user:lastseen:" + strconv.FormatUint(uint64(uid), 10)
		if ok, _ := rdb.SetNX(c, key, "1", throttle).Result(); ok {
			_ = repo.TouchUserSeen(c, uid) // 忽略错误，不阻塞请求
		}
		c.Next()
	}
}

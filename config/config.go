package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env（不存在时忽略），已有的环境变量优先
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %v", err)
	}
}

func Get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// DatabaseDSN 优先 DATABASE_URL，否则用 DB_* 拼 Postgres DSN
func DatabaseDSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		Get("DB_HOST", "127.0.0.1"),
		Get("DB_USER", "postgres"),
		os.Getenv("DB_PASSWORD"),
		Get("DB_NAME", "tool_lending"),
		Get("DB_PORT", "5432"),
	)
}

// CSV 逗号分隔的列表，去空白；lower=true 时统一小写
func CSV(k string, lower bool) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(k), ",") {
		if t := strings.TrimSpace(s); t != "" {
			if lower {
				t = strings.ToLower(t)
			}
			out = append(out, t)
		}
	}
	return out
}

// app/bootstrap.go
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"
)

// BootstrapFirstAdmin 没有任何 ADMIN 时，用 BOOTSTRAP_EMAIL 建第一个管理员并打印一条 passkey 邀请链接
func BootstrapFirstAdmin(ctx context.Context, cfg Config, repo *db.Repo) {
	dept, err := db.EnsureDepartment(ctx, repo.DB, cfg.SeedDepartment)
	if err != nil {
		log.Printf("[BOOTSTRAP] ensure department %q failed: %v", cfg.SeedDepartment, err)
		return
	}
	if cfg.BootstrapEmail == "" {
		return
	}
	n, err := repo.CountAdmins(ctx)
	if err != nil {
		log.Printf("[BOOTSTRAP] count admins failed: %v", err)
		return
	}
	if n > 0 {
		return // 已经有管理员，跳过
	}

	roles, err := repo.ListRoles(ctx)
	if err != nil {
		log.Printf("[BOOTSTRAP] list roles failed: %v", err)
		return
	}
	var adminRole uint
	for _, r := range roles {
		if r.Name == models.RoleAdmin {
			adminRole = r.ID
		}
	}

	u, err := repo.FindUserByEmail(ctx, cfg.BootstrapEmail)
	if errors.Is(err, db.ErrNotFound) {
		pw := cfg.BootstrapPassword
		if pw == "" {
			pw = NewToken()
			log.Printf("[BOOTSTRAP] generated password for %s: %s", cfg.BootstrapEmail, pw)
		}
		local, _, _ := strings.Cut(cfg.BootstrapEmail, "@")
		u, err = repo.CreateUser(ctx, db.NewUser{
			Firstname:    local,
			Lastname:     "Admin",
			Email:        cfg.BootstrapEmail,
			Password:     pw,
			IsActive:     true,
			RoleID:       adminRole,
			DepartmentID: dept.ID,
		})
		if err != nil {
			log.Printf("[BOOTSTRAP] create admin failed: %v", err)
			return
		}
	} else if err != nil {
		log.Printf("[BOOTSTRAP] lookup %s failed: %v", cfg.BootstrapEmail, err)
		return
	} else if u.RoleID != adminRole {
		if u, err = repo.UpdateUser(ctx, u.ID, db.UserUpdate{RoleID: &adminRole}); err != nil {
			log.Printf("[BOOTSTRAP] promote %s failed: %v", cfg.BootstrapEmail, err)
			return
		}
	}

	// 链接只打日志，不发信
	iv := &Invites{Repo: repo, Cfg: cfg, Mail: logMailer{}}
	issued, err := iv.Issue(ctx, u.ID, 24*time.Hour, "bootstrap")
	if err != nil {
		log.Printf("[BOOTSTRAP] invite failed: %v", err)
		return
	}
	log.Printf("[BOOTSTRAP] No admin found, created admin %s", u.Email)
	log.Printf("[BOOTSTRAP] Open this URL to register a passkey: %s", issued.Link)
}

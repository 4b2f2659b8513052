package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
)

// Repo 是实体存储 + 两个引擎（leadership / loan lifecycle）的入口
type Repo struct {
	DB *gorm.DB

	// Choose 返回 [0, n) 里的下标；生产环境均匀随机，测试里可替换成确定值
	Choose func(n int) int
	Now    func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{
		DB:     db,
		Choose: rand.IntN,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// pick 从非空候选里选一个
func pick[T any](r *Repo, xs []T) T {
	return xs[r.Choose(len(xs))]
}

// Users

// TouchUserLogin 登录快照：时间、次数、来源
func (r *Repo) TouchUserLogin(ctx context.Context, userID uint, ip, ua string) error {
	now := r.Now()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("login_count + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("last_seen_at", r.Now()).Error
}

func (r *Repo) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return &u, nil
}

// FindUserByEmail 邮箱统一小写存储
func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u models.User
	err := r.DB.WithContext(ctx).Preload("Role").Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserQuery Q 匹配姓名 / 邮箱；RoleName、DepartmentID、Active 为空不过滤
type UserQuery struct {
	Q            string
	DepartmentID *uint
	RoleName     string
	Active       *bool
	Page, Size   int
}

type UserPage struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q UserQuery) (*UserPage, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 100 {
		q.Size = 20
	}
	base := r.DB.WithContext(ctx)
	tx := base.Model(&models.User{})
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(firstname) LIKE ? OR LOWER(lastname) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if q.DepartmentID != nil {
		tx = tx.Where("department_id = ?", *q.DepartmentID)
	}
	if q.RoleName != "" {
		id, err := roleID(base, strings.ToUpper(q.RoleName))
		if err != nil {
			return nil, invalidf("unknown role %q", q.RoleName)
		}
		tx = tx.Where("role_id = ?", id)
	}
	if q.Active != nil {
		tx = tx.Where("is_active = ?", *q.Active)
	}
	tx = tx.Session(&gorm.Session{})

	page := &UserPage{}
	if err := tx.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := tx.Preload("Role").Order("id ASC").
		Offset((q.Page - 1) * q.Size).Limit(q.Size).
		Find(&page.Users).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (r *Repo) ListRoles(ctx context.Context) ([]models.Role, error) {
	var rs []models.Role
	err := r.DB.WithContext(ctx).Order("id ASC").Find(&rs).Error
	return rs, err
}

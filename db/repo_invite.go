package db

import (
	"context"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateInvite 只能给已存在的用户发邀请，email 取自该用户
func (r *Repo) CreateInvite(ctx context.Context, userID uint, token string, expiresAt time.Time, createdBy string) (*models.Invite, error) {
	u, err := r.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	inv := &models.Invite{
		UserID:    u.ID,
		Email:     u.Email,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		CreatedBy: createdBy,
	}
	return inv, r.DB.WithContext(ctx).Create(inv).Error
}

func (r *Repo) GetInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, notFoundOr(err, "invite", 0)
	}
	return &inv, nil
}

// ConsumeInvite 校验 token 可用并标记已用，整体在一个事务里
func (r *Repo) ConsumeInvite(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ?", token).First(&inv).Error; err != nil {
			return notFoundOr(err, "invite", 0)
		}
		now := r.Now()
		if !inv.Usable(now) {
			return conflictf("invite already used or expired")
		}
		inv.UsedAt = &now
		return tx.Model(&models.Invite{}).Where("id = ? AND used_at IS NULL", inv.ID).Update("used_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repo) ListInvites(ctx context.Context, userID *uint) ([]models.Invite, error) {
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var out []models.Invite
	err := q.Find(&out).Error
	return out, err
}

package db

import (
	"context"
	"errors"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
)

// Passkey 凭据。credential_id 全局唯一，同一个认证器不能登记到两个账号

func (r *Repo) AddCredential(ctx context.Context, c *models.Credential) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Credential{}).Where("credential_id = ?", c.CredentialID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflictf("credential already registered")
		}
		if err := userExists(tx, c.UserID); err != nil {
			return err
		}
		return tx.Create(c).Error
	})
}

func (r *Repo) LoadUserCredentials(ctx context.Context, userID uint) ([]models.Credential, error) {
	var cs []models.Credential
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&cs).Error
	return cs, err
}

func (r *Repo) CountCredentials(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Credential{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// RecordCredentialUse 登录成功后写回签名计数、克隆告警和最后使用时间
func (r *Repo) RecordCredentialUse(ctx context.Context, credID []byte, signCount uint32, cloneWarning bool) error {
	res := r.DB.WithContext(ctx).Model(&models.Credential{}).
		Where("credential_id = ?", credID).
		Updates(map[string]any{
			"sign_count":    signCount,
			"clone_warning": cloneWarning,
			"last_used_at":  r.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("credential", 0)
	}
	return nil
}

func (r *Repo) FindUserByCredentialID(ctx context.Context, credID []byte) (*models.User, *models.Credential, error) {
	var c models.Credential
	err := r.DB.WithContext(ctx).Where("credential_id = ?", credID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, notFound("credential", 0)
	}
	if err != nil {
		return nil, nil, err
	}
	u, err := r.FindUserByID(ctx, c.UserID)
	if err != nil {
		return nil, nil, err
	}
	return u, &c, nil
}

// DeleteCredential 只能删自己的；最后一个 passkey 也允许删（还有密码登录）
func (r *Repo) DeleteCredential(ctx context.Context, userID, id uint) error {
	res := r.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Credential{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("credential", id)
	}
	return nil
}

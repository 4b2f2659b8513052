package db

import (
	"context"
	"errors"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
)

// SeedLookups 按名字 get-or-create 所有查表数据，可重复执行
func SeedLookups(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, n := range []string{models.RoleAdmin, models.RoleDepartmentManager, models.RoleEmployee} {
			if err := tx.Where(models.Role{Name: n}).FirstOrCreate(&models.Role{}).Error; err != nil {
				return err
			}
		}
		for _, n := range models.ToolStatusNames {
			if err := tx.Where(models.ToolStatus{Name: n}).FirstOrCreate(&models.ToolStatus{}).Error; err != nil {
				return err
			}
		}
		for _, n := range models.ToolConditionNames {
			if err := tx.Where(models.ToolCondition{Name: n}).FirstOrCreate(&models.ToolCondition{}).Error; err != nil {
				return err
			}
		}
		for _, n := range models.RequestStatusNames {
			if err := tx.Where(models.LoanRequestStatus{Name: n}).FirstOrCreate(&models.LoanRequestStatus{}).Error; err != nil {
				return err
			}
		}
		for _, n := range models.IssueStatusNames {
			if err := tx.Where(models.ToolItemIssueStatus{Name: n}).FirstOrCreate(&models.ToolItemIssueStatus{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureDepartment 返回同名部门，没有就建（不带 lead）
func EnsureDepartment(ctx context.Context, db *gorm.DB, name string) (*models.Department, error) {
	var d models.Department
	err := db.WithContext(ctx).Where("name = ?", name).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d = models.Department{Name: name}
		if err := db.WithContext(ctx).Create(&d).Error; err != nil {
			return nil, err
		}
		return &d, nil
	}
	return &d, err
}

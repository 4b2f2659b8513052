package db

import (
	"Gin_postgres_redis_tool_lending/models"
	"context"
	"fmt"

	"gorm.io/gorm"
)

// lookupID 按名字查查表行的 id；查不到说明没跑 seed
func lookupID(tx *gorm.DB, model any, kind, name string) (uint, error) {
	var ids []uint
	if err := tx.Model(model).Where("name = ?", name).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: %s %q not found, run the seed first", ErrConfiguration, kind, name)
	}
	return ids[0], nil
}

// lookupName 反查名字；id 不存在时视为客户端传错
func lookupName(tx *gorm.DB, model any, kind string, id uint) (string, error) {
	var names []string
	if err := tx.Model(model).Where("id = ?", id).Limit(1).Pluck("name", &names).Error; err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", notFound(kind, id)
	}
	return names[0], nil
}

func roleID(tx *gorm.DB, name string) (uint, error) {
	return lookupID(tx, &models.Role{}, "role", name)
}

func toolStatusID(tx *gorm.DB, name string) (uint, error) {
	return lookupID(tx, &models.ToolStatus{}, "tool status", name)
}

func conditionID(tx *gorm.DB, name string) (uint, error) {
	return lookupID(tx, &models.ToolCondition{}, "tool condition", name)
}

func requestStatusID(tx *gorm.DB, name string) (uint, error) {
	return lookupID(tx, &models.LoanRequestStatus{}, "loan request status", name)
}

func issueStatusID(tx *gorm.DB, name string) (uint, error) {
	return lookupID(tx, &models.ToolItemIssueStatus{}, "issue status", name)
}

// Lookups 一次性返回所有查表，给前端下拉框用
type Lookups struct {
	Roles               []models.Role                `json:"roles"`
	ToolStatuses        []models.ToolStatus          `json:"toolStatuses"`
	ToolConditions      []models.ToolCondition       `json:"toolConditions"`
	LoanRequestStatuses []models.LoanRequestStatus   `json:"loanRequestStatuses"`
	IssueStatuses       []models.ToolItemIssueStatus `json:"issueStatuses"`
}

func (r *Repo) ListLookups(ctx context.Context) (*Lookups, error) {
	tx := r.DB.WithContext(ctx)
	var l Lookups
	for _, dst := range []any{&l.Roles, &l.ToolStatuses, &l.ToolConditions, &l.LoanRequestStatuses, &l.IssueStatuses} {
		if err := tx.Order("id ASC").Find(dst).Error; err != nil {
			return nil, err
		}
	}
	return &l, nil
}

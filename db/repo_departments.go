// db/repo_departments.go
package db

import (
	"context"
	"errors"
	"strings"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
)

func (r *Repo) GetDepartment(ctx context.Context, id uint) (*models.Department, error) {
	var d models.Department
	if err := r.DB.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "department", id)
	}
	return &d, nil
}

func (r *Repo) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var ds []models.Department
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&ds).Error
	return ds, err
}

func nameTaken(tx *gorm.DB, name string, exceptID uint) error {
	var d models.Department
	err := tx.Where("name = ? AND id <> ?", name, exceptID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return conflictf("department name %q already in use", name)
}

// CreateDepartment 建部门；leadUserID 非空时按 SetDepartmentLead 的规则指派
func (r *Repo) CreateDepartment(ctx context.Context, name string, leadUserID *uint) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("department name is required")
	}
	var d models.Department
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := nameTaken(tx, name, 0); err != nil {
			return err
		}
		d = models.Department{Name: name}
		if err := tx.Create(&d).Error; err != nil {
			return duplicateAs(err, "department name %q already in use", name)
		}
		if leadUserID != nil {
			return r.assignLead(tx, &d, *leadUserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetDepartment(ctx, d.ID)
}

// SetDepartmentLead：leadUserID 非空 → 指派（旧 lead 降级）；为空 → 清除并随机选继任者
func (r *Repo) SetDepartmentLead(ctx context.Context, departmentID uint, leadUserID *uint) (*models.Department, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDepartment(tx, departmentID)
		if err != nil {
			return err
		}
		if leadUserID != nil {
			return r.assignLead(tx, d, *leadUserID)
		}
		return r.clearLead(tx, d)
	})
	if err != nil {
		return nil, err
	}
	return r.GetDepartment(ctx, departmentID)
}

type DepartmentUpdate struct {
	Name *string
	// LeadSet=true 时才处理 LeadUserID（nil 表示清除）
	LeadSet    bool
	LeadUserID *uint
}

func (r *Repo) UpdateDepartment(ctx context.Context, id uint, in DepartmentUpdate) (*models.Department, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDepartment(tx, id)
		if err != nil {
			return err
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return invalidf("department name is required")
			}
			if err := nameTaken(tx, name, d.ID); err != nil {
				return err
			}
			if err := tx.Model(&models.Department{}).Where("id = ?", d.ID).Update("name", name).Error; err != nil {
				return duplicateAs(err, "department name %q already in use", name)
			}
		}
		if !in.LeadSet {
			return nil
		}
		if in.LeadUserID != nil {
			return r.assignLead(tx, d, *in.LeadUserID)
		}
		return r.clearLead(tx, d)
	})
	if err != nil {
		return nil, err
	}
	return r.GetDepartment(ctx, id)
}

// DeleteDepartment：还有成员时把他们随机分到其他部门（原 lead 降级）；没有别的部门则冲突
func (r *Repo) DeleteDepartment(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDepartment(tx, id)
		if err != nil {
			return err
		}
		var members []models.User
		if err := tx.Where("department_id = ?", d.ID).Order("id ASC").Find(&members).Error; err != nil {
			return err
		}
		oldLead := d.LeadUserID
		if len(members) > 0 {
			var others []models.Department
			if err := tx.Where("id <> ?", d.ID).Order("id ASC").Find(&others).Error; err != nil {
				return err
			}
			if len(others) == 0 {
				return conflictf("cannot delete department %q: it is the last department and still has %d member(s)", d.Name, len(members))
			}
			if oldLead != nil {
				if err := r.setLead(tx, d, nil, models.LeadReasonDepartmentDeleted); err != nil {
					return err
				}
			}
			for _, m := range members {
				target := pick(r, others)
				if err := tx.Model(&models.User{}).Where("id = ?", m.ID).
					Update("department_id", target.ID).Error; err != nil {
					return err
				}
				if oldLead != nil && *oldLead == m.ID {
					if err := setRole(tx, m.ID, models.RoleEmployee); err != nil {
						return err
					}
				}
			}
		} else if oldLead != nil {
			if err := r.setLead(tx, d, nil, models.LeadReasonDepartmentDeleted); err != nil {
				return err
			}
		}
		return tx.Delete(&models.Department{}, d.ID).Error
	})
}

func (r *Repo) ListLeadershipLogs(ctx context.Context, departmentID *uint, limit int) ([]models.LeadershipLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Order("id DESC").Limit(limit)
	if departmentID != nil {
		q = q.Where("department_id = ?", *departmentID)
	}
	var logs []models.LeadershipLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

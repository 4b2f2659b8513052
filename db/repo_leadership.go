// db/repo_leadership.go
package db

import (
	"errors"

	"Gin_postgres_redis_tool_lending/metrics"
	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 不变量：
//   一个用户最多是一个部门的 lead；
//   department.lead_user_id = U  ⇒  U.role = DEPARTMENT_MANAGER 且 U.department_id = department.id
// 下面的函数都只在事务 tx 里调用，任何一步失败整体回滚。

func lockDepartment(tx *gorm.DB, id uint) (*models.Department, error) {
	var d models.Department
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "department", id)
	}
	return &d, nil
}

// leadOf 返回 userID 当前领导的部门，没有返回 nil
func leadOf(tx *gorm.DB, userID uint) (*models.Department, error) {
	var d models.Department
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lead_user_id = ?", userID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func setRole(tx *gorm.DB, userID uint, role string) error {
	id, err := roleID(tx, role)
	if err != nil {
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("role_id", id).Error
}

// setLead 改 lead 指针并写一条日志
func (r *Repo) setLead(tx *gorm.DB, d *models.Department, next *uint, reason string) error {
	prev := d.LeadUserID
	if err := tx.Model(&models.Department{}).Where("id = ?", d.ID).
		Update("lead_user_id", next).Error; err != nil {
		return duplicateAs(err, "user %d already leads another department", derefID(next))
	}
	d.LeadUserID = next
	if err := tx.Create(&models.LeadershipLog{
		DepartmentID:   d.ID,
		PreviousLeadID: prev,
		NewLeadID:      next,
		Reason:         reason,
		CreatedAt:      r.Now(),
	}).Error; err != nil {
		return err
	}
	metrics.LeadChanges.WithLabelValues(reason).Inc()
	return nil
}

// appointSuccessor：leaving 离开 lead 位置后，从部门其余成员里选一个接任；没人就置空
func (r *Repo) appointSuccessor(tx *gorm.DB, d *models.Department, leaving uint, reason string) error {
	var candidates []models.User
	if err := tx.Where("department_id = ? AND id <> ?", d.ID, leaving).
		Order("id ASC").Find(&candidates).Error; err != nil {
		return err
	}
	if len(candidates) == 0 {
		return r.setLead(tx, d, nil, reason)
	}
	next := pick(r, candidates)
	if err := setRole(tx, next.ID, models.RoleDepartmentManager); err != nil {
		return err
	}
	return r.setLead(tx, d, &next.ID, reason)
}

// assignLead：把 userID 设为 d 的 lead
func (r *Repo) assignLead(tx *gorm.DB, d *models.Department, userID uint) error {
	// 1) 先锁用户行，再查 lead 指针（同一用户的并发指派在这里排队）
	var u models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
		return notFoundOr(err, "user", userID)
	}
	// 2) 已经是别的部门的 lead → 冲突
	other, err := leadOf(tx, userID)
	if err != nil {
		return err
	}
	if other != nil && other.ID != d.ID {
		return conflictf("user %d already leads department %q", userID, other.Name)
	}
	// 3) 旧 lead 降级
	if d.LeadUserID != nil && *d.LeadUserID != userID {
		if err := setRole(tx, *d.LeadUserID, models.RoleEmployee); err != nil {
			return err
		}
	}
	// 4) 新 lead 升级，并且归属到这个部门
	managerID, err := roleID(tx, models.RoleDepartmentManager)
	if err != nil {
		return err
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"role_id": managerID, "department_id": d.ID}).Error; err != nil {
		return err
	}
	if d.LeadUserID != nil && *d.LeadUserID == userID {
		return nil
	}
	return r.setLead(tx, d, &userID, models.LeadReasonAssigned)
}

// clearLead：lead 置空，旧 lead 降级后随机选继任者
func (r *Repo) clearLead(tx *gorm.DB, d *models.Department) error {
	if d.LeadUserID == nil {
		return nil
	}
	old := *d.LeadUserID
	if err := setRole(tx, old, models.RoleEmployee); err != nil {
		return err
	}
	return r.appointSuccessor(tx, d, old, models.LeadReasonCleared)
}

// enterLeadership：userID 成为部门 d 的经理（角色本身由调用方写）
func (r *Repo) enterLeadership(tx *gorm.DB, userID uint, d *models.Department, reason string) error {
	// 指向该用户的旧指针（数据不一致时才会出现）先清掉，避免唯一索引冲突
	stale, err := leadOf(tx, userID)
	if err != nil {
		return err
	}
	if stale != nil && stale.ID != d.ID {
		if err := r.setLead(tx, stale, nil, reason); err != nil {
			return err
		}
	}
	if d.LeadUserID != nil && *d.LeadUserID == userID {
		return nil
	}
	if d.LeadUserID != nil {
		if err := setRole(tx, *d.LeadUserID, models.RoleEmployee); err != nil {
			return err
		}
	}
	return r.setLead(tx, d, &userID, reason)
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

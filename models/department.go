package models

import "time"

const DepartmentTable = "lsb_departments"

// Department.LeadUserID 与 User.DepartmentID 是两条独立的指针，
// 两者的一致性只由 db 包里的 leadership 逻辑维护，不靠外键级联。
type Department struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	LeadUserID *uint     `gorm:"uniqueIndex" json:"leadUserId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Department) TableName() string { return DepartmentTable }

// LeadershipLog 记录每一次 lead 指针变化
type LeadershipLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DepartmentID   uint      `gorm:"index;not null" json:"departmentId"`
	PreviousLeadID *uint     `json:"previousLeadId,omitempty"`
	NewLeadID      *uint     `json:"newLeadId,omitempty"`
	Reason         string    `gorm:"size:40;not null" json:"reason"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
}

func (LeadershipLog) TableName() string { return "lsb_leadership_log" }

const (
	LeadReasonAssigned          = "assigned"
	LeadReasonCleared           = "cleared"
	LeadReasonUserUpdate        = "user_update"
	LeadReasonUserDeleted       = "user_deleted"
	LeadReasonDepartmentDeleted = "department_deleted"
)

// models/tool.go
package models

import "time"

const (
	ToolTable     = "lsb_tools"
	ToolItemTable = "lsb_tool_items"
)

// ToolStatus 名称：生命周期状态，互斥
const (
	ToolStatusAvailable   = "AVAILABLE"
	ToolStatusLoaned      = "LOANED"
	ToolStatusDefect      = "DEFECT"
	ToolStatusMaintenance = "MAINTENANCE"
	ToolStatusRetired     = "RETIRED"
)

// ToolCondition 名称：物理状态，与 status 无关
const (
	ConditionOK     = "OK"
	ConditionWorn   = "WORN"
	ConditionDefect = "DEFECT"
)

var (
	ToolStatusNames    = []string{ToolStatusAvailable, ToolStatusLoaned, ToolStatusDefect, ToolStatusMaintenance, ToolStatusRetired}
	ToolConditionNames = []string{ConditionOK, ConditionWorn, ConditionDefect}
)

type ToolCategory struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`
}

func (ToolCategory) TableName() string { return "lsb_tool_categories" }

type ToolStatus struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (ToolStatus) TableName() string { return "lsb_tool_statuses" }

type ToolCondition struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (ToolCondition) TableName() string { return "lsb_tool_conditions" }

// Tool 是目录条目（例如 "Hammer"），实物由 ToolItem 逐件追踪
type Tool struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CategoryID  *uint     `gorm:"index" json:"categoryId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Tool) TableName() string { return ToolTable }

type ToolItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InventoryNo string    `gorm:"size:120;uniqueIndex;not null" json:"inventoryNo"` // 唯一编号
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ToolID      uint      `gorm:"index;not null" json:"toolId"`
	StatusID    uint      `gorm:"index;not null" json:"statusId"` // 只由借还流程修改
	ConditionID uint      `gorm:"not null" json:"conditionId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (ToolItem) TableName() string { return ToolItemTable }

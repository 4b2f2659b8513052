package models

import "time"

const (
	IssueStatusOpen       = "OPEN"
	IssueStatusInProgress = "IN_PROGRESS"
	IssueStatusResolved   = "RESOLVED"
	IssueStatusClosed     = "CLOSED"
)

var IssueStatusNames = []string{IssueStatusOpen, IssueStatusInProgress, IssueStatusResolved, IssueStatusClosed}

type ToolItemIssueStatus struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (ToolItemIssueStatus) TableName() string { return "lsb_tool_item_issue_statuses" }

// ToolItemIssue 与借用状态无关，只是对某件实物的问题报告
type ToolItemIssue struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ToolItemID       uint       `gorm:"index;not null" json:"toolItemId"`
	ReportedAt       time.Time  `gorm:"not null" json:"reportedAt"`
	ReportedByUserID uint       `gorm:"not null" json:"reportedByUserId"`
	StatusID         uint       `gorm:"index;not null" json:"statusId"`
	Title            string     `gorm:"size:200;not null" json:"title"`
	Description      *string    `gorm:"type:text" json:"description,omitempty"`
	RelatedLoanID    *uint      `json:"relatedLoanId,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
}

func (ToolItemIssue) TableName() string { return "lsb_tool_item_issues" }

// models/loan.go
package models

import (
	"time"
)

const (
	LoanTable     = "lsb_loans"
	LoanItemTable = "lsb_loan_items"
)

type Loan struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	IssuedAt time.Time `gorm:"index;not null" json:"issuedAt"`
	DueAt    time.Time `gorm:"index;not null" json:"dueAt"`

	BorrowerUserID       uint  `gorm:"index;not null" json:"borrowerUserId"`
	IssuedByUserID       uint  `gorm:"not null" json:"issuedByUserId"`
	CreatedFromRequestID *uint `gorm:"index" json:"createdFromRequestId,omitempty"`

	// returned_at 为空即为进行中
	ReturnedAt       *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	ReturnedByUserID *uint      `json:"returnedByUserId,omitempty"`

	Comment *string    `gorm:"type:text" json:"comment,omitempty"`
	Items   []LoanItem `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"items"`

	// 派生字段，不落库
	Overdue bool `gorm:"-" json:"overdue"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Loan) TableName() string { return LoanTable }

func (l *Loan) IsOverdue(now time.Time) bool {
	return l.ReturnedAt == nil && l.DueAt.Before(now)
}

// 同一 loan 下同一件实物只能出现一次
type LoanItem struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	LoanID            uint    `gorm:"not null;uniqueIndex:idx_loan_items_loan_tool_item" json:"loanId"`
	ToolItemID        uint    `gorm:"not null;index;uniqueIndex:idx_loan_items_loan_tool_item" json:"toolItemId"`
	ReturnComment     *string `gorm:"type:text" json:"returnComment,omitempty"`
	ReturnConditionID *uint   `json:"returnConditionId,omitempty"`
}

func (LoanItem) TableName() string { return LoanItemTable }

package models

import "time"

const LoanRequestTable = "lsb_loan_requests"

const (
	RequestStatusRequested = "REQUESTED"
	RequestStatusApproved  = "APPROVED"
	RequestStatusRejected  = "REJECTED"
	RequestStatusCancelled = "CANCELLED"
)

var RequestStatusNames = []string{RequestStatusRequested, RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled}

type LoanRequestStatus struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;uniqueIndex;not null" json:"name"`
}

func (LoanRequestStatus) TableName() string { return "lsb_loan_request_statuses" }

// LoanRequest 申请的是工具类型 + 数量，具体实物在批准时才分配
type LoanRequest struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Comment         *string    `gorm:"type:text" json:"comment,omitempty"`
	LoanStartAt     *time.Time `json:"loanStartAt,omitempty"`
	DueAt           time.Time  `gorm:"not null" json:"dueAt"`
	RequesterUserID uint       `gorm:"index;not null" json:"requesterUserId"`
	RequestStatusID uint       `gorm:"index;not null" json:"requestStatusId"`

	// 决策字段一次性一起写入
	ApproverUserID  *uint      `json:"approverUserId,omitempty"`
	DecisionAt      *time.Time `json:"decisionAt,omitempty"`
	DecisionComment *string    `gorm:"type:text" json:"decisionComment,omitempty"`

	Items     []LoanRequestItem `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (LoanRequest) TableName() string { return LoanRequestTable }

type LoanRequestItem struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	RequestID uint `gorm:"index;not null" json:"requestId"`
	ToolID    uint `gorm:"index;not null" json:"toolId"`
	Quantity  int  `gorm:"not null" json:"quantity"`
}

func (LoanRequestItem) TableName() string { return "lsb_loan_request_items" }

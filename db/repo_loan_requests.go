// db/repo_loan_requests.go
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/metrics"
	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestLine struct {
	ToolID   uint
	Quantity int
}

type NewLoanRequest struct {
	RequesterUserID uint
	DueAt           time.Time
	LoanStartAt     *time.Time
	Comment         *string
	Lines           []RequestLine
}

// checkAvailability 同一工具出现在多行时按总数算
func checkAvailability(tx *gorm.DB, lines []RequestLine) error {
	availableID, err := toolStatusID(tx, models.ToolStatusAvailable)
	if err != nil {
		return err
	}
	want := map[uint]int{}
	var order []uint
	for _, l := range lines {
		if _, ok := want[l.ToolID]; !ok {
			order = append(order, l.ToolID)
		}
		want[l.ToolID] += l.Quantity
	}
	for _, toolID := range order {
		var t models.Tool
		if err := tx.First(&t, toolID).Error; err != nil {
			return notFoundOr(err, "tool", toolID)
		}
		n, err := countAvailable(tx, toolID, availableID)
		if err != nil {
			return err
		}
		if n < int64(want[toolID]) {
			return fmt.Errorf("%w: tool %q needs %d, %d available",
				ErrInsufficientAvailability, t.Name, want[toolID], n)
		}
	}
	return nil
}

func (r *Repo) CreateLoanRequest(ctx context.Context, in NewLoanRequest) (*models.LoanRequest, error) {
	if len(in.Lines) == 0 {
		return nil, invalidf("at least one request line is required")
	}
	for _, l := range in.Lines {
		if l.Quantity < 1 {
			return nil, invalidf("quantity for tool %d must be at least 1", l.ToolID)
		}
	}
	if in.DueAt.IsZero() {
		return nil, invalidf("due date is required")
	}
	if in.LoanStartAt != nil && in.LoanStartAt.After(in.DueAt) {
		return nil, invalidf("loan start must not be after the due date")
	}

	var req models.LoanRequest
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, in.RequesterUserID); err != nil {
			return err
		}
		if err := checkAvailability(tx, in.Lines); err != nil {
			return err
		}
		statusID, err := requestStatusID(tx, models.RequestStatusRequested)
		if err != nil {
			return err
		}
		req = models.LoanRequest{
			Comment:         in.Comment,
			DueAt:           in.DueAt.UTC(),
			RequesterUserID: in.RequesterUserID,
			RequestStatusID: statusID,
		}
		if in.LoanStartAt != nil {
			s := in.LoanStartAt.UTC()
			req.LoanStartAt = &s
		}
		for _, l := range in.Lines {
			req.Items = append(req.Items, models.LoanRequestItem{ToolID: l.ToolID, Quantity: l.Quantity})
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func lockRequest(tx *gorm.DB, id uint) (*models.LoanRequest, string, error) {
	var req models.LoanRequest
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&req, id).Error; err != nil {
		return nil, "", notFoundOr(err, "loan request", id)
	}
	status, err := lookupName(tx, &models.LoanRequestStatus{}, "loan request status", req.RequestStatusID)
	if err != nil {
		return nil, "", err
	}
	return &req, status, nil
}

// DecisionResult 批准时带上新建的 loan
type DecisionResult struct {
	Request *models.LoanRequest `json:"request"`
	Loan    *models.Loan        `json:"loan,omitempty"`
}

// DecideLoanRequest：只能对 REQUESTED 决策一次；APPROVED 时在同一事务里分配实物并建 loan
func (r *Repo) DecideLoanRequest(ctx context.Context, id, approverID uint, decision string, comment *string) (*DecisionResult, error) {
	decision = strings.ToUpper(strings.TrimSpace(decision))
	if decision != models.RequestStatusApproved && decision != models.RequestStatusRejected {
		return nil, invalidf("decision must be %s or %s", models.RequestStatusApproved, models.RequestStatusRejected)
	}

	var loan *models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		req, status, err := lockRequest(tx, id)
		if err != nil {
			return err
		}
		if status != models.RequestStatusRequested {
			return conflictf("loan request %d is already %s", id, status)
		}
		nextID, err := requestStatusID(tx, decision)
		if err != nil {
			return err
		}
		if decision == models.RequestStatusApproved {
			if loan, err = r.loanFromRequest(tx, req, approverID); err != nil {
				return err
			}
		}
		return tx.Model(&models.LoanRequest{}).Where("id = ?", id).Updates(map[string]any{
			"request_status_id": nextID,
			"approver_user_id":  approverID,
			"decision_at":       r.Now(),
			"decision_comment":  comment,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	if loan != nil {
		metrics.LoansIssued.WithLabelValues(originRequest).Inc()
	}
	req, err := r.GetLoanRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DecisionResult{Request: req, Loan: loan}, nil
}

// CancelLoanRequest：申请人撤回，仅 REQUESTED 可撤
func (r *Repo) CancelLoanRequest(ctx context.Context, id uint) (*models.LoanRequest, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, status, err := lockRequest(tx, id)
		if err != nil {
			return err
		}
		if status != models.RequestStatusRequested {
			return conflictf("loan request %d is already %s", id, status)
		}
		cancelledID, err := requestStatusID(tx, models.RequestStatusCancelled)
		if err != nil {
			return err
		}
		return tx.Model(&models.LoanRequest{}).Where("id = ?", id).Update("request_status_id", cancelledID).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetLoanRequest(ctx, id)
}

func (r *Repo) GetLoanRequest(ctx context.Context, id uint) (*models.LoanRequest, error) {
	var req models.LoanRequest
	if err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "loan request", id)
	}
	return &req, nil
}

type LoanRequestFilter struct {
	RequesterUserID *uint
	DepartmentID    *uint // 申请人所在部门
	Status          string
}

func (r *Repo) ListLoanRequests(ctx context.Context, f LoanRequestFilter) ([]models.LoanRequest, error) {
	db := r.DB.WithContext(ctx)
	q := db.Model(&models.LoanRequest{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order(models.LoanRequestTable + ".created_at DESC, " + models.LoanRequestTable + ".id DESC")
	if f.RequesterUserID != nil {
		q = q.Where(models.LoanRequestTable+".requester_user_id = ?", *f.RequesterUserID)
	}
	if f.DepartmentID != nil {
		q = q.Joins("JOIN "+models.UserTable+" u ON u.id = "+models.LoanRequestTable+".requester_user_id").
			Where("u.department_id = ?", *f.DepartmentID)
	}
	if s := strings.ToUpper(strings.TrimSpace(f.Status)); s != "" {
		statusID, err := requestStatusID(db, s)
		if err != nil {
			return nil, invalidf("unknown request status %q", s)
		}
		q = q.Where(models.LoanRequestTable+".request_status_id = ?", statusID)
	}
	var out []models.LoanRequest
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) DeleteLoanRequest(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.LoanRequest{}, id).Error; err != nil {
			return notFoundOr(err, "loan request", id)
		}
		if err := tx.Where("request_id = ?", id).Delete(&models.LoanRequestItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.LoanRequest{}, id).Error
	})
}

package db

import (
	"context"
	"fmt"
	"time"

	"Gin_postgres_redis_tool_lending/metrics"
	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoansIssued 的 origin 标签
const (
	originDirect  = "direct"
	originRequest = "request"
)

// markLoaned 只把仍是 AVAILABLE 的行改成 LOANED；影响行数不够说明被并发抢走
func markLoaned(tx *gorm.DB, ids []uint, availableID, loanedID uint) error {
	res := tx.Model(&models.ToolItem{}).
		Where("id IN ? AND status_id = ?", ids, availableID).
		Update("status_id", loanedID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return fmt.Errorf("%w: %d of %d tool item(s) no longer available",
			ErrInsufficientAvailability, int64(len(ids))-res.RowsAffected, len(ids))
	}
	return nil
}

func (r *Repo) insertLoan(tx *gorm.DB, l *models.Loan, itemIDs []uint) error {
	l.Items = make([]models.LoanItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		l.Items = append(l.Items, models.LoanItem{ToolItemID: id})
	}
	if err := tx.Create(l).Error; err != nil {
		return err
	}
	r.markOverdue(l)
	return nil
}

// markOverdue 逾期标记按 repo 的时钟算，和 ListOverdueLoans 的判断一致
func (r *Repo) markOverdue(ls ...*models.Loan) {
	now := r.Now()
	for _, l := range ls {
		l.Overdue = l.IsOverdue(now)
	}
}

func (r *Repo) markOverdueAll(ls []models.Loan) {
	now := r.Now()
	for i := range ls {
		ls[i].Overdue = ls[i].IsOverdue(now)
	}
}

type NewLoan struct {
	BorrowerUserID uint
	IssuedByUserID uint
	DueAt          time.Time
	Comment        *string
	ToolItemIDs    []uint
}

// 直接借出：锁住指定实物 → 逐个确认 AVAILABLE → 改 LOANED → 新建 loan
func (r *Repo) CreateLoan(ctx context.Context, in NewLoan) (*models.Loan, error) {
	if len(in.ToolItemIDs) == 0 {
		return nil, invalidf("at least one tool item is required")
	}
	if in.DueAt.IsZero() {
		return nil, invalidf("due date is required")
	}
	seen := make(map[uint]bool, len(in.ToolItemIDs))
	for _, id := range in.ToolItemIDs {
		if seen[id] {
			return nil, invalidf("tool item %d listed twice", id)
		}
		seen[id] = true
	}

	var loan models.Loan
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := userExists(tx, in.BorrowerUserID); err != nil {
			return err
		}
		availableID, err := toolStatusID(tx, models.ToolStatusAvailable)
		if err != nil {
			return err
		}
		loanedID, err := toolStatusID(tx, models.ToolStatusLoaned)
		if err != nil {
			return err
		}

		var items []models.ToolItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", in.ToolItemIDs).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		found := make(map[uint]models.ToolItem, len(items))
		for _, it := range items {
			found[it.ID] = it
		}
		for _, id := range in.ToolItemIDs {
			it, ok := found[id]
			if !ok {
				return notFound("tool item", id)
			}
			if it.StatusID != availableID {
				return fmt.Errorf("%w: tool item %q is not available", ErrInsufficientAvailability, it.InventoryNo)
			}
		}
		if err := markLoaned(tx, in.ToolItemIDs, availableID, loanedID); err != nil {
			return err
		}
		loan = models.Loan{
			IssuedAt:       r.Now(),
			DueAt:          in.DueAt.UTC(),
			BorrowerUserID: in.BorrowerUserID,
			IssuedByUserID: in.IssuedByUserID,
			Comment:        in.Comment,
		}
		return r.insertLoan(tx, &loan, in.ToolItemIDs)
	})
	if err != nil {
		return nil, err
	}
	metrics.LoansIssued.WithLabelValues(originDirect).Inc()
	return &loan, nil
}

// loanFromRequest 给已批准的申请逐行分配实物：每个工具取 id 最小的 quantity 件 AVAILABLE
func (r *Repo) loanFromRequest(tx *gorm.DB, req *models.LoanRequest, approverID uint) (*models.Loan, error) {
	availableID, err := toolStatusID(tx, models.ToolStatusAvailable)
	if err != nil {
		return nil, err
	}
	loanedID, err := toolStatusID(tx, models.ToolStatusLoaned)
	if err != nil {
		return nil, err
	}

	var allocated []uint
	for _, line := range req.Items {
		var items []models.ToolItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tool_id = ? AND status_id = ?", line.ToolID, availableID).
			Order("id ASC").Limit(line.Quantity).Find(&items).Error; err != nil {
			return nil, err
		}
		if len(items) < line.Quantity {
			var t models.Tool
			if err := tx.Select("id", "name").First(&t, line.ToolID).Error; err != nil {
				return nil, notFoundOr(err, "tool", line.ToolID)
			}
			return nil, fmt.Errorf("%w: tool %q needs %d, %d available",
				ErrInsufficientAvailability, t.Name, line.Quantity, len(items))
		}
		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		if err := markLoaned(tx, ids, availableID, loanedID); err != nil {
			return nil, err
		}
		allocated = append(allocated, ids...)
	}

	issued := r.Now()
	if req.LoanStartAt != nil {
		issued = req.LoanStartAt.UTC()
	}
	loan := &models.Loan{
		IssuedAt:             issued,
		DueAt:                req.DueAt.UTC(),
		BorrowerUserID:       req.RequesterUserID,
		IssuedByUserID:       approverID,
		CreatedFromRequestID: &req.ID,
		Comment:              req.Comment,
	}
	if err := r.insertLoan(tx, loan, allocated); err != nil {
		return nil, err
	}
	return loan, nil
}

// ItemReturn 归还时单件实物的信息；没提到的实物按无 condition 释放
type ItemReturn struct {
	LoanItemID  uint
	Comment     *string
	ConditionID *uint
}

// 归还：锁 loan → 逐件写回 condition / 状态 → 标记 returned_at
// 返回状态：condition 为 DEFECT 的实物置 DEFECT，其余回到 AVAILABLE
func (r *Repo) ReturnLoan(ctx context.Context, loanID, returnedBy uint, returns []ItemReturn) (*models.Loan, error) {
	var defects, released int
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").First(&l, loanID).Error; err != nil {
			return notFoundOr(err, "loan", loanID)
		}
		if l.ReturnedAt != nil {
			return conflictf("loan %d already returned", loanID)
		}
		availableID, err := toolStatusID(tx, models.ToolStatusAvailable)
		if err != nil {
			return err
		}
		defectStatusID, err := toolStatusID(tx, models.ToolStatusDefect)
		if err != nil {
			return err
		}
		defectCondID, err := conditionID(tx, models.ConditionDefect)
		if err != nil {
			return err
		}

		defects, released = 0, 0
		byID := make(map[uint]ItemReturn, len(returns))
		for _, ret := range returns {
			byID[ret.LoanItemID] = ret
		}

		for _, li := range l.Items {
			ret, mentioned := byID[li.ID]
			statusID := availableID
			itemUpdates := map[string]any{}
			if mentioned {
				liUpdates := map[string]any{}
				if ret.Comment != nil {
					liUpdates["return_comment"] = *ret.Comment
				}
				if ret.ConditionID != nil {
					if _, err := lookupName(tx, &models.ToolCondition{}, "tool condition", *ret.ConditionID); err != nil {
						return err
					}
					liUpdates["return_condition_id"] = *ret.ConditionID
					itemUpdates["condition_id"] = *ret.ConditionID
					if *ret.ConditionID == defectCondID {
						statusID = defectStatusID
					}
				}
				if len(liUpdates) > 0 {
					if err := tx.Model(&models.LoanItem{}).Where("id = ?", li.ID).Updates(liUpdates).Error; err != nil {
						return err
					}
				}
			}
			itemUpdates["status_id"] = statusID
			if err := tx.Model(&models.ToolItem{}).Where("id = ?", li.ToolItemID).Updates(itemUpdates).Error; err != nil {
				return err
			}
			if statusID == defectStatusID {
				defects++
			} else {
				released++
			}
		}

		now := r.Now()
		return tx.Model(&models.Loan{}).Where("id = ?", l.ID).Updates(map[string]any{
			"returned_at":         now,
			"returned_by_user_id": returnedBy,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	// 提交之后再计数，回滚的归还不算
	metrics.ItemsReturned.WithLabelValues(models.ToolStatusDefect).Add(float64(defects))
	metrics.ItemsReturned.WithLabelValues(models.ToolStatusAvailable).Add(float64(released))
	return r.GetLoan(ctx, loanID)
}

func (r *Repo) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	var l models.Loan
	if err := r.DB.WithContext(ctx).Preload("Items").First(&l, id).Error; err != nil {
		return nil, notFoundOr(err, "loan", id)
	}
	r.markOverdue(&l)
	return &l, nil
}

type LoanFilter struct {
	BorrowerUserID *uint
	ToolItemID     *uint
	Status         string // "", "open", "returned"
}

func (r *Repo) ListLoans(ctx context.Context, f LoanFilter) ([]models.Loan, error) {
	db := r.DB.WithContext(ctx)
	q := db.Model(&models.Loan{}).Preload("Items").Order("issued_at DESC, id DESC")
	if f.BorrowerUserID != nil {
		q = q.Where("borrower_user_id = ?", *f.BorrowerUserID)
	}
	if f.ToolItemID != nil {
		q = q.Where("id IN (?)", db.Model(&models.LoanItem{}).Select("loan_id").Where("tool_item_id = ?", *f.ToolItemID))
	}
	switch f.Status {
	case "open":
		q = q.Where("returned_at IS NULL")
	case "returned":
		q = q.Where("returned_at IS NOT NULL")
	}
	var ls []models.Loan
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	r.markOverdueAll(ls)
	return ls, nil
}

// ListOverdueLoans 未归还且 due_at 已过；departmentID 非空时只看该部门借用人
func (r *Repo) ListOverdueLoans(ctx context.Context, departmentID *uint) ([]models.Loan, error) {
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).Preload("Items").
		Where(models.LoanTable+".returned_at IS NULL AND "+models.LoanTable+".due_at < ?", r.Now()).
		Order(models.LoanTable + ".due_at ASC")
	if departmentID != nil {
		q = q.Joins("JOIN "+models.UserTable+" u ON u.id = "+models.LoanTable+".borrower_user_id").
			Where("u.department_id = ?", *departmentID)
	}
	var ls []models.Loan
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	r.markOverdueAll(ls)
	return ls, nil
}

// DeleteLoan 只删已归还的 loan
func (r *Repo) DeleteLoan(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var l models.Loan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, id).Error; err != nil {
			return notFoundOr(err, "loan", id)
		}
		if l.ReturnedAt == nil {
			return conflictf("loan %d is still active, return it first", id)
		}
		if err := tx.Where("loan_id = ?", id).Delete(&models.LoanItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Loan{}, id).Error
	})
}

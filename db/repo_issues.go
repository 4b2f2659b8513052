package db

import (
	"context"
	"strings"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NewIssue struct {
	ToolItemID       uint
	ReportedByUserID uint
	Title            string
	Description      *string
	RelatedLoanID    *uint
}

// CreateIssue 新问题一律是 OPEN，不改实物状态
func (r *Repo) CreateIssue(ctx context.Context, in NewIssue) (*models.ToolItemIssue, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidf("issue title is required")
	}
	var is models.ToolItemIssue
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.ToolItem{}, in.ToolItemID).Error; err != nil {
			return notFoundOr(err, "tool item", in.ToolItemID)
		}
		if in.RelatedLoanID != nil {
			var n int64
			if err := tx.Model(&models.LoanItem{}).
				Where("loan_id = ? AND tool_item_id = ?", *in.RelatedLoanID, in.ToolItemID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return invalidf("loan %d does not include tool item %d", *in.RelatedLoanID, in.ToolItemID)
			}
		}
		openID, err := issueStatusID(tx, models.IssueStatusOpen)
		if err != nil {
			return err
		}
		is = models.ToolItemIssue{
			ToolItemID:       in.ToolItemID,
			ReportedAt:       r.Now(),
			ReportedByUserID: in.ReportedByUserID,
			StatusID:         openID,
			Title:            title,
			Description:      in.Description,
			RelatedLoanID:    in.RelatedLoanID,
		}
		return tx.Create(&is).Error
	})
	if err != nil {
		return nil, err
	}
	return &is, nil
}

func (r *Repo) GetIssue(ctx context.Context, id uint) (*models.ToolItemIssue, error) {
	var is models.ToolItemIssue
	if err := r.DB.WithContext(ctx).First(&is, id).Error; err != nil {
		return nil, notFoundOr(err, "issue", id)
	}
	return &is, nil
}

type IssueFilter struct {
	ToolItemID *uint
	Status     string
}

func (r *Repo) ListIssues(ctx context.Context, f IssueFilter) ([]models.ToolItemIssue, error) {
	db := r.DB.WithContext(ctx)
	q := db.Order("reported_at DESC, id DESC")
	if f.ToolItemID != nil {
		q = q.Where("tool_item_id = ?", *f.ToolItemID)
	}
	if s := strings.ToUpper(strings.TrimSpace(f.Status)); s != "" {
		id, err := issueStatusID(db, s)
		if err != nil {
			return nil, invalidf("unknown issue status %q", s)
		}
		q = q.Where("status_id = ?", id)
	}
	var out []models.ToolItemIssue
	err := q.Find(&out).Error
	return out, err
}

// SetIssueStatus 改到 RESOLVED / CLOSED 时写 resolved_at，重新打开时清空
func (r *Repo) SetIssueStatus(ctx context.Context, id uint, status string) (*models.ToolItemIssue, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var is models.ToolItemIssue
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&is, id).Error; err != nil {
			return notFoundOr(err, "issue", id)
		}
		var known bool
		for _, n := range models.IssueStatusNames {
			known = known || n == status
		}
		if !known {
			return invalidf("unknown issue status %q", status)
		}
		statusID, err := issueStatusID(tx, status)
		if err != nil {
			return err
		}
		updates := map[string]any{"status_id": statusID}
		switch status {
		case models.IssueStatusResolved, models.IssueStatusClosed:
			if is.ResolvedAt == nil {
				updates["resolved_at"] = r.Now()
			}
		default:
			updates["resolved_at"] = nil
		}
		return tx.Model(&models.ToolItemIssue{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetIssue(ctx, id)
}

func (r *Repo) ResolveIssue(ctx context.Context, id uint) (*models.ToolItemIssue, error) {
	return r.SetIssueStatus(ctx, id, models.IssueStatusResolved)
}

func (r *Repo) DeleteIssue(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.ToolItemIssue{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("issue", id)
	}
	return nil
}

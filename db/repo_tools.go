// db/repo_tools.go
package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Categories

func (r *Repo) CreateToolCategory(ctx context.Context, name string) (*models.ToolCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidf("category name is required")
	}
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.ToolCategory{}).Where("name = ?", name).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, conflictf("tool category %q already exists", name)
	}
	c := &models.ToolCategory{Name: name}
	return c, r.DB.WithContext(ctx).Create(c).Error
}

func (r *Repo) ListToolCategories(ctx context.Context) ([]models.ToolCategory, error) {
	var cs []models.ToolCategory
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&cs).Error
	return cs, err
}

// Tools

type NewTool struct {
	Name        string
	Description string
	CategoryID  *uint
}

func (r *Repo) CreateTool(ctx context.Context, in NewTool) (*models.Tool, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidf("tool name is required")
	}
	if in.CategoryID != nil {
		if _, err := lookupName(r.DB.WithContext(ctx), &models.ToolCategory{}, "tool category", *in.CategoryID); err != nil {
			return nil, err
		}
	}
	t := &models.Tool{Name: strings.TrimSpace(in.Name), Description: in.Description, CategoryID: in.CategoryID}
	if err := r.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repo) GetTool(ctx context.Context, id uint) (*models.Tool, error) {
	var t models.Tool
	if err := r.DB.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, notFoundOr(err, "tool", id)
	}
	return &t, nil
}

func (r *Repo) ListTools(ctx context.Context, categoryID *uint) ([]models.Tool, error) {
	q := r.DB.WithContext(ctx).Order("name ASC")
	if categoryID != nil {
		q = q.Where("category_id = ?", *categoryID)
	}
	var ts []models.Tool
	err := q.Find(&ts).Error
	return ts, err
}

type ToolUpdate struct {
	Name        *string
	Description *string
	CategoryID  *uint
}

func (r *Repo) UpdateTool(ctx context.Context, id uint, in ToolUpdate) (*models.Tool, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Tool{}, id).Error; err != nil {
			return notFoundOr(err, "tool", id)
		}
		updates := map[string]any{}
		if in.Name != nil {
			if strings.TrimSpace(*in.Name) == "" {
				return invalidf("tool name must not be empty")
			}
			updates["name"] = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.CategoryID != nil {
			if _, err := lookupName(tx, &models.ToolCategory{}, "tool category", *in.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *in.CategoryID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Tool{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetTool(ctx, id)
}

// DeleteTool 只允许删除没有实物的目录条目
func (r *Repo) DeleteTool(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Tool
		if err := tx.First(&t, id).Error; err != nil {
			return notFoundOr(err, "tool", id)
		}
		var n int64
		if err := tx.Model(&models.ToolItem{}).Where("tool_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflictf("tool %q still has %d item(s)", t.Name, n)
		}
		return tx.Delete(&models.Tool{}, id).Error
	})
}

// Tool items

type NewToolItem struct {
	InventoryNo string
	Description string
	ToolID      uint
	ConditionID *uint // 默认 OK
}

// CreateToolItem 新建实物，状态固定为 AVAILABLE
func (r *Repo) CreateToolItem(ctx context.Context, in NewToolItem) (*models.ToolItem, error) {
	inv := strings.TrimSpace(in.InventoryNo)
	if inv == "" {
		return nil, invalidf("inventory number is required")
	}
	var it models.ToolItem
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Tool{}, in.ToolID).Error; err != nil {
			return notFoundOr(err, "tool", in.ToolID)
		}
		if err := inventoryTaken(tx, inv, 0); err != nil {
			return err
		}
		statusID, err := toolStatusID(tx, models.ToolStatusAvailable)
		if err != nil {
			return err
		}
		var condID uint
		if in.ConditionID != nil {
			if _, err := lookupName(tx, &models.ToolCondition{}, "tool condition", *in.ConditionID); err != nil {
				return err
			}
			condID = *in.ConditionID
		} else if condID, err = conditionID(tx, models.ConditionOK); err != nil {
			return err
		}
		it = models.ToolItem{
			InventoryNo: inv,
			Description: in.Description,
			ToolID:      in.ToolID,
			StatusID:    statusID,
			ConditionID: condID,
		}
		return tx.Create(&it).Error
	})
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func inventoryTaken(tx *gorm.DB, inv string, exceptID uint) error {
	var n int64
	if err := tx.Model(&models.ToolItem{}).Where("inventory_no = ? AND id <> ?", inv, exceptID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflictf("inventory number %q already in use", inv)
	}
	return nil
}

func (r *Repo) GetToolItem(ctx context.Context, id uint) (*models.ToolItem, error) {
	var it models.ToolItem
	if err := r.DB.WithContext(ctx).First(&it, id).Error; err != nil {
		return nil, notFoundOr(err, "tool item", id)
	}
	return &it, nil
}

type ToolItemFilter struct {
	ToolID      *uint
	StatusID    *uint
	ConditionID *uint
	InventoryNo string // 模糊匹配
}

func (r *Repo) ListToolItems(ctx context.Context, f ToolItemFilter) ([]models.ToolItem, error) {
	q := r.DB.WithContext(ctx).Order("id ASC")
	if f.ToolID != nil {
		q = q.Where("tool_id = ?", *f.ToolID)
	}
	if f.StatusID != nil {
		q = q.Where("status_id = ?", *f.StatusID)
	}
	if f.ConditionID != nil {
		q = q.Where("condition_id = ?", *f.ConditionID)
	}
	if s := strings.TrimSpace(f.InventoryNo); s != "" {
		q = q.Where("LOWER(inventory_no) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	var items []models.ToolItem
	err := q.Find(&items).Error
	return items, err
}

// ToolItemUpdate 不包含 status：状态只由借还 / 报废流程修改
type ToolItemUpdate struct {
	InventoryNo *string
	Description *string
	ConditionID *uint
}

func (r *Repo) UpdateToolItem(ctx context.Context, id uint, in ToolItemUpdate) (*models.ToolItem, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.ToolItem{}, id).Error; err != nil {
			return notFoundOr(err, "tool item", id)
		}
		updates := map[string]any{}
		if in.InventoryNo != nil {
			inv := strings.TrimSpace(*in.InventoryNo)
			if inv == "" {
				return invalidf("inventory number must not be empty")
			}
			if err := inventoryTaken(tx, inv, id); err != nil {
				return err
			}
			updates["inventory_no"] = inv
		}
		if in.Description != nil {
			updates["description"] = *in.Description
		}
		if in.ConditionID != nil {
			if _, err := lookupName(tx, &models.ToolCondition{}, "tool condition", *in.ConditionID); err != nil {
				return err
			}
			updates["condition_id"] = *in.ConditionID
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.ToolItem{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetToolItem(ctx, id)
}

// activeLoanFor 返回引用该实物且尚未归还的 loan id（没有返回 0）
func activeLoanFor(tx *gorm.DB, toolItemID uint) (uint, error) {
	var ids []uint
	err := tx.Table(models.LoanItemTable+" li").
		Joins("JOIN "+models.LoanTable+" l ON l.id = li.loan_id").
		Where("li.tool_item_id = ? AND l.returned_at IS NULL", toolItemID).
		Limit(1).
		Pluck("l.id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

// RetireToolItem：有进行中的 loan 时不允许报废
func (r *Repo) RetireToolItem(ctx context.Context, id uint) (*models.ToolItem, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.ToolItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&it, id).Error; err != nil {
			return notFoundOr(err, "tool item", id)
		}
		loanID, err := activeLoanFor(tx, it.ID)
		if err != nil {
			return err
		}
		if loanID != 0 {
			return conflictf("tool item %q is on active loan %d", it.InventoryNo, loanID)
		}
		retiredID, err := toolStatusID(tx, models.ToolStatusRetired)
		if err != nil {
			return err
		}
		return tx.Model(&models.ToolItem{}).Where("id = ?", it.ID).Update("status_id", retiredID).Error
	})
	if err != nil {
		return nil, err
	}
	return r.GetToolItem(ctx, id)
}

func (r *Repo) DeleteToolItem(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var it models.ToolItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&it, id).Error; err != nil {
			return notFoundOr(err, "tool item", id)
		}
		loanID, err := activeLoanFor(tx, it.ID)
		if err != nil {
			return err
		}
		if loanID != 0 {
			return conflictf("tool item %q is on active loan %d", it.InventoryNo, loanID)
		}
		return tx.Delete(&models.ToolItem{}, it.ID).Error
	})
}

// StatusCount 某工具在各状态下的件数
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (r *Repo) ToolAvailability(ctx context.Context, toolID uint) ([]StatusCount, error) {
	if _, err := r.GetTool(ctx, toolID); err != nil {
		return nil, err
	}
	var rows []StatusCount
	err := r.DB.WithContext(ctx).
		Table(models.ToolItemTable+" i").
		Select("s.name AS status, COUNT(*) AS count").
		Joins("JOIN lsb_tool_statuses s ON s.id = i.status_id").
		Where("i.tool_id = ?", toolID).
		Group("s.name").
		Order("s.name ASC").
		Scan(&rows).Error
	return rows, err
}

func countAvailable(tx *gorm.DB, toolID, availableID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.ToolItem{}).
		Where("tool_id = ? AND status_id = ?", toolID, availableID).
		Count(&n).Error
	return n, err
}

// LoanHistoryRow 实物的借用历史（按 issued_at 升序）
type LoanHistoryRow struct {
	LoanID          uint       `json:"loanId"`
	BorrowerUserID  uint       `json:"borrowerUserId"`
	BorrowerEmail   *string    `json:"borrowerEmail,omitempty"`
	IssuedAt        time.Time  `json:"issuedAt"`
	DueAt           time.Time  `json:"dueAt"`
	ReturnedAt      *time.Time `json:"returnedAt,omitempty"`
	ReturnCondition *string    `json:"returnCondition,omitempty"`
	ReturnComment   *string    `json:"returnComment,omitempty"`
}

func (r *Repo) ToolItemLoanHistory(ctx context.Context, toolItemID uint) ([]LoanHistoryRow, error) {
	if _, err := r.GetToolItem(ctx, toolItemID); err != nil {
		return nil, err
	}
	var rows []LoanHistoryRow
	err := r.DB.WithContext(ctx).
		Table(models.LoanItemTable+" li").
		Select(`
			l.id AS loan_id, l.borrower_user_id, u.email AS borrower_email,
			l.issued_at, l.due_at, l.returned_at,
			c.name AS return_condition, li.return_comment
		`).
		Joins("JOIN "+models.LoanTable+" l ON l.id = li.loan_id").
		Joins("LEFT JOIN "+models.UserTable+" u ON u.id = l.borrower_user_id").
		Joins("LEFT JOIN lsb_tool_conditions c ON c.id = li.return_condition_id").
		Where("li.tool_item_id = ?", toolItemID).
		Order("l.issued_at ASC, l.id ASC").
		Scan(&rows).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return rows, err
}

// db/repo_items_admin.go
package db

import (
	"context"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/gorm"
)

type AdminToolItemRow struct {
	// ToolItem fields
	ID            uint      `json:"id"`
	InventoryNo   string    `json:"inventoryNo"`
	ToolID        uint      `json:"toolId"`
	ToolName      string    `json:"toolName"`
	StatusName    string    `json:"status"`
	ConditionName *string   `json:"condition,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	// Current open loan (nullable)
	LoanID        *uint      `json:"loanId,omitempty"`
	BorrowerID    *uint      `json:"borrowerId,omitempty"`
	BorrowerEmail *string    `json:"borrowerEmail,omitempty"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
	DueAt         *time.Time `json:"dueAt,omitempty"`
	Overdue       bool       `json:"overdue"` // 由 SQL 计算
}

type AdminToolItemsQuery struct {
	Q      string // 模糊搜索：inventory_no / tool name
	ToolID *uint
	Status string // "", "overdue", 或 ToolStatus 名字（AVAILABLE / LOANED / ...）
	Page   int
	Size   int
}

type PagedAdminToolItems struct {
	Total int64              `json:"total"`
	Items []AdminToolItemRow `json:"items"`
}

// ListToolItemsWithCurrentLoan 每件实物连同当前未归还的 loan（一件实物同时最多在一个进行中的 loan 里）
func (r *Repo) ListToolItemsWithCurrentLoan(ctx context.Context, q AdminToolItemsQuery) (*PagedAdminToolItems, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Size <= 0 || q.Size > 200 {
		q.Size = 20
	}
	offset := (q.Page - 1) * q.Size
	now := r.Now()

	db := r.DB.WithContext(ctx)

	// 子查询：未归还 loan 里的实物
	sub := db.
		Table(models.LoanItemTable+" li").
		Select("li.tool_item_id, l.id AS loan_id, l.borrower_user_id, l.issued_at, l.due_at").
		Joins("JOIN "+models.LoanTable+" l ON l.id = li.loan_id").
		Where("l.returned_at IS NULL")

	qry := db.
		Table(models.ToolItemTable+" i").
		Joins("JOIN "+models.ToolTable+" t ON t.id = i.tool_id").
		Joins("JOIN lsb_tool_statuses s ON s.id = i.status_id").
		Joins("LEFT JOIN lsb_tool_conditions c ON c.id = i.condition_id").
		Joins("LEFT JOIN (?) AS ol ON ol.tool_item_id = i.id", sub).
		Joins("LEFT JOIN " + models.UserTable + " u ON u.id = ol.borrower_user_id")

	// 过滤
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		qry = qry.Where("LOWER(i.inventory_no) LIKE ? OR LOWER(t.name) LIKE ?", pat, pat)
	}
	if q.ToolID != nil {
		qry = qry.Where("i.tool_id = ?", *q.ToolID)
	}
	switch st := strings.ToUpper(strings.TrimSpace(q.Status)); st {
	case "":
		// all
	case "OVERDUE":
		qry = qry.Where("ol.due_at IS NOT NULL AND ol.due_at < ?", now)
	default:
		qry = qry.Where("s.name = ?", st)
	}

	qry = qry.Session(&gorm.Session{})

	var total int64
	if err := qry.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []AdminToolItemRow
	if err := qry.
		Select(`
			i.id, i.inventory_no, i.tool_id, i.created_at, i.updated_at,
			t.name       AS tool_name,
			s.name       AS status_name,
			c.name       AS condition_name,
			ol.loan_id,
			ol.borrower_user_id AS borrower_id,
			u.email      AS borrower_email,
			ol.issued_at,
			ol.due_at,
			CASE WHEN ol.due_at IS NOT NULL AND ol.due_at < ? THEN TRUE ELSE FALSE END AS overdue
		`, now).
		Order("i.id ASC").Offset(offset).Limit(q.Size).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	return &PagedAdminToolItems{Total: total, Items: rows}, nil
}

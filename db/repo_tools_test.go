package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"Gin_postgres_redis_tool_lending/models"
)

func TestCreateToolItemDefaults(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	tool, items := mustTool(t, r, "Leiter", 1)

	if got := itemStatus(t, r, items[0].ID); got != models.ToolStatusAvailable {
		t.Fatalf("status = %s", got)
	}
	if items[0].ConditionID != mustConditionID(t, r, models.ConditionOK) {
		t.Fatalf("condition = %d, want OK", items[0].ConditionID)
	}
	_, err := r.CreateToolItem(ctx, NewToolItem{InventoryNo: items[0].InventoryNo, ToolID: tool.ID})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate inventory err = %v, want conflict", err)
	}
	if _, err := r.CreateToolItem(ctx, NewToolItem{InventoryNo: "X-1", ToolID: 9999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown tool err = %v, want not found", err)
	}
}

func TestMissingLookupRowIsConfigurationError(t *testing.T) {
	r := newTestRepo(t)
	tool, _ := mustTool(t, r, "Leiter", 0)
	if err := r.DB.Where("name = ?", models.ToolStatusAvailable).Delete(&models.ToolStatus{}).Error; err != nil {
		t.Fatalf("delete status: %v", err)
	}
	_, err := r.CreateToolItem(context.Background(), NewToolItem{InventoryNo: "L-1", ToolID: tool.ID})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestRetireBlockedByActiveLoan(t *testing.T) {
	f := newRequestFixture(t, 1)
	ctx := context.Background()
	l := directLoan(t, f, 7, f.items[0])

	if _, err := f.r.RetireToolItem(ctx, f.items[0].ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if err := f.r.DeleteToolItem(ctx, f.items[0].ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("delete err = %v, want conflict", err)
	}
	if _, err := f.r.ReturnLoan(ctx, l.ID, f.approver.ID, nil); err != nil {
		t.Fatalf("return: %v", err)
	}
	if _, err := f.r.RetireToolItem(ctx, f.items[0].ID); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if got := itemStatus(t, f.r, f.items[0].ID); got != models.ToolStatusRetired {
		t.Fatalf("status = %s", got)
	}
	if n := availableCount(t, f.r, f.tool.ID); n != 0 {
		t.Fatalf("retired item still counted available")
	}
}

func TestDeleteToolWithItemsConflicts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	tool, items := mustTool(t, r, "Leiter", 1)
	if err := r.DeleteTool(ctx, tool.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if err := r.DeleteToolItem(ctx, items[0].ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if err := r.DeleteTool(ctx, tool.ID); err != nil {
		t.Fatalf("delete tool: %v", err)
	}
}

func TestUpdateTool(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	cat, err := r.CreateToolCategory(ctx, "Elektro")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := r.CreateToolCategory(ctx, "Elektro"); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate category err = %v, want conflict", err)
	}
	tool, _ := mustTool(t, r, "Leiter", 0)
	name := "Stehleiter"
	got, err := r.UpdateTool(ctx, tool.ID, ToolUpdate{Name: &name, CategoryID: &cat.ID})
	if err != nil {
		t.Fatalf("update tool: %v", err)
	}
	if got.Name != name || got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Fatalf("tool = %+v", got)
	}
	listed, err := r.ListTools(ctx, &cat.ID)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != tool.ID {
		t.Fatalf("tools in category = %+v", listed)
	}
}

func TestToolItemLoanHistory(t *testing.T) {
	f := newRequestFixture(t, 1)
	ctx := context.Background()
	first := directLoan(t, f, 7, f.items[0])
	worn := mustConditionID(t, f.r, models.ConditionWorn)
	if _, err := f.r.ReturnLoan(ctx, first.ID, f.approver.ID, []ItemReturn{
		{LoanItemID: first.Items[0].ID, ConditionID: &worn},
	}); err != nil {
		t.Fatalf("return: %v", err)
	}
	f.r.Now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	second := directLoan(t, f, 7, f.items[0])

	rows, err := f.r.ToolItemLoanHistory(ctx, f.items[0].ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("history rows = %d, want 2", len(rows))
	}
	if rows[0].LoanID != first.ID || rows[1].LoanID != second.ID {
		t.Fatalf("history order = %d, %d", rows[0].LoanID, rows[1].LoanID)
	}
	if rows[0].ReturnCondition == nil || *rows[0].ReturnCondition != models.ConditionWorn {
		t.Fatalf("return condition = %v", rows[0].ReturnCondition)
	}
	if rows[0].BorrowerEmail == nil || *rows[0].BorrowerEmail != f.borrower.Email {
		t.Fatalf("borrower email = %v", rows[0].BorrowerEmail)
	}
	if rows[1].ReturnedAt != nil {
		t.Fatalf("open loan has returned_at")
	}
}

func TestAdminListingShowsCurrentLoan(t *testing.T) {
	f := newRequestFixture(t, 3)
	ctx := context.Background()
	late := directLoan(t, f, -1, f.items[0])
	directLoan(t, f, 4, f.items[1])

	page, err := f.r.ListToolItemsWithCurrentLoan(ctx, AdminToolItemsQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 3 {
		t.Fatalf("total = %d items = %d", page.Total, len(page.Items))
	}
	row := page.Items[0]
	if row.LoanID == nil || *row.LoanID != late.ID || !row.Overdue {
		t.Fatalf("first row = %+v", row)
	}
	if row.BorrowerEmail == nil || *row.BorrowerEmail != f.borrower.Email {
		t.Fatalf("borrower email = %v", row.BorrowerEmail)
	}
	if page.Items[2].LoanID != nil || page.Items[2].StatusName != models.ToolStatusAvailable {
		t.Fatalf("free row = %+v", page.Items[2])
	}

	overdue, err := f.r.ListToolItemsWithCurrentLoan(ctx, AdminToolItemsQuery{Status: "overdue"})
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if overdue.Total != 1 || overdue.Items[0].ID != f.items[0].ID {
		t.Fatalf("overdue page = %+v", overdue)
	}
	loaned, err := f.r.ListToolItemsWithCurrentLoan(ctx, AdminToolItemsQuery{Status: models.ToolStatusLoaned, Size: 1})
	if err != nil {
		t.Fatalf("list loaned: %v", err)
	}
	if loaned.Total != 2 || len(loaned.Items) != 1 {
		t.Fatalf("loaned page total=%d len=%d", loaned.Total, len(loaned.Items))
	}
}

func TestIssueLifecycle(t *testing.T) {
	f := newRequestFixture(t, 2)
	ctx := context.Background()
	l := directLoan(t, f, 7, f.items[0])

	if _, err := f.r.CreateIssue(ctx, NewIssue{
		ToolItemID: f.items[1].ID, ReportedByUserID: f.borrower.ID, Title: "Kabel", RelatedLoanID: &l.ID,
	}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unrelated loan err = %v, want invalid", err)
	}
	is, err := f.r.CreateIssue(ctx, NewIssue{
		ToolItemID: f.items[0].ID, ReportedByUserID: f.borrower.ID, Title: "Kabel gebrochen", RelatedLoanID: &l.ID,
	})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	if name, _ := lookupName(f.r.DB, &models.ToolItemIssueStatus{}, "issue status", is.StatusID); name != models.IssueStatusOpen {
		t.Fatalf("new issue status = %s", name)
	}
	// 报问题不影响借用状态
	if got := itemStatus(t, f.r, f.items[0].ID); got != models.ToolStatusLoaned {
		t.Fatalf("item status = %s", got)
	}

	resolved, err := f.r.ResolveIssue(ctx, is.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil {
		t.Fatalf("resolved_at not set")
	}
	reopened, err := f.r.SetIssueStatus(ctx, is.ID, models.IssueStatusInProgress)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ResolvedAt != nil {
		t.Fatalf("resolved_at kept after reopening")
	}
	if _, err := f.r.SetIssueStatus(ctx, is.ID, "LOST"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want invalid", err)
	}

	open, err := f.r.ListIssues(ctx, IssueFilter{ToolItemID: &f.items[0].ID, Status: models.IssueStatusInProgress})
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("issues = %d, want 1", len(open))
	}
	if err := f.r.DeleteIssue(ctx, is.ID); err != nil {
		t.Fatalf("delete issue: %v", err)
	}
	if err := f.r.DeleteIssue(ctx, is.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestInviteConsumedOnce(t *testing.T) {
	f := newRequestFixture(t, 0)
	ctx := context.Background()
	inv, err := f.r.CreateInvite(ctx, f.borrower.ID, "tok-1", time.Now().Add(time.Hour), "admin")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if inv.Email != f.borrower.Email {
		t.Fatalf("invite email = %s", inv.Email)
	}
	if _, err := f.r.ConsumeInvite(ctx, "tok-1"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := f.r.ConsumeInvite(ctx, "tok-1"); !errors.Is(err, ErrConflict) {
		t.Fatalf("second consume err = %v, want conflict", err)
	}
	if _, err := f.r.CreateInvite(ctx, 9999, "tok-2", time.Now().Add(time.Hour), "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user err = %v, want not found", err)
	}
	expired, err := f.r.CreateInvite(ctx, f.borrower.ID, "tok-3", time.Now().Add(-time.Minute), "admin")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := f.r.ConsumeInvite(ctx, expired.Token); !errors.Is(err, ErrConflict) {
		t.Fatalf("expired consume err = %v, want conflict", err)
	}
}

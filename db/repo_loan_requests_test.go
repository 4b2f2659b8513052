package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"Gin_postgres_redis_tool_lending/models"
)

type requestFixture struct {
	r        *Repo
	borrower *models.User
	approver *models.User
	tool     *models.Tool
	items    []models.ToolItem
}

func newRequestFixture(t *testing.T, items int) *requestFixture {
	t.Helper()
	r := newTestRepo(t)
	lager := mustDepartment(t, r, "Lager")
	f := &requestFixture{r: r}
	f.approver = mustUser(t, r, "anna", models.RoleDepartmentManager, lager.ID)
	f.borrower = mustUser(t, r, "bert", models.RoleEmployee, lager.ID)
	f.tool, f.items = mustTool(t, r, "Bohrmaschine", items)
	return f
}

func (f *requestFixture) request(t *testing.T, qty int) *models.LoanRequest {
	t.Helper()
	req, err := f.r.CreateLoanRequest(context.Background(), NewLoanRequest{
		RequesterUserID: f.borrower.ID,
		DueAt:           inDays(7),
		Lines:           []RequestLine{{ToolID: f.tool.ID, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func requestStatus(t *testing.T, r *Repo, id uint) string {
	t.Helper()
	req, err := r.GetLoanRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	name, err := lookupName(r.DB, &models.LoanRequestStatus{}, "loan request status", req.RequestStatusID)
	if err != nil {
		t.Fatalf("status name: %v", err)
	}
	return name
}

func TestCreateRequestInsufficientAvailability(t *testing.T) {
	f := newRequestFixture(t, 2)
	_, err := f.r.CreateLoanRequest(context.Background(), NewLoanRequest{
		RequesterUserID: f.borrower.ID,
		DueAt:           inDays(7),
		Lines:           []RequestLine{{ToolID: f.tool.ID, Quantity: 3}},
	})
	if !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want insufficient availability", err)
	}
}

func TestCreateRequestSumsLinesPerTool(t *testing.T) {
	f := newRequestFixture(t, 3)
	_, err := f.r.CreateLoanRequest(context.Background(), NewLoanRequest{
		RequesterUserID: f.borrower.ID,
		DueAt:           inDays(7),
		Lines: []RequestLine{
			{ToolID: f.tool.ID, Quantity: 2},
			{ToolID: f.tool.ID, Quantity: 2},
		},
	})
	if !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want insufficient availability", err)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newRequestFixture(t, 1)
	ctx := context.Background()
	start := inDays(10)
	cases := []struct {
		name string
		in   NewLoanRequest
		want error
	}{
		{"no lines", NewLoanRequest{RequesterUserID: f.borrower.ID, DueAt: inDays(1)}, ErrInvalid},
		{"zero quantity", NewLoanRequest{RequesterUserID: f.borrower.ID, DueAt: inDays(1),
			Lines: []RequestLine{{ToolID: f.tool.ID, Quantity: 0}}}, ErrInvalid},
		{"start after due", NewLoanRequest{RequesterUserID: f.borrower.ID, DueAt: inDays(1), LoanStartAt: &start,
			Lines: []RequestLine{{ToolID: f.tool.ID, Quantity: 1}}}, ErrInvalid},
		{"unknown tool", NewLoanRequest{RequesterUserID: f.borrower.ID, DueAt: inDays(1),
			Lines: []RequestLine{{ToolID: 9999, Quantity: 1}}}, ErrNotFound},
		{"unknown requester", NewLoanRequest{RequesterUserID: 9999, DueAt: inDays(1),
			Lines: []RequestLine{{ToolID: f.tool.ID, Quantity: 1}}}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.r.CreateLoanRequest(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestApproveRequestCreatesLoan(t *testing.T) {
	f := newRequestFixture(t, 3)
	ctx := context.Background()
	req := f.request(t, 2)
	if got := requestStatus(t, f.r, req.ID); got != models.RequestStatusRequested {
		t.Fatalf("new request status = %s", got)
	}

	res, err := f.r.DecideLoanRequest(ctx, req.ID, f.approver.ID, "approved", nil)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Loan == nil || len(res.Loan.Items) != 2 {
		t.Fatalf("loan = %+v, want two items", res.Loan)
	}
	if res.Loan.CreatedFromRequestID == nil || *res.Loan.CreatedFromRequestID != req.ID {
		t.Fatalf("loan not linked to request")
	}
	if res.Loan.BorrowerUserID != f.borrower.ID || res.Loan.IssuedByUserID != f.approver.ID {
		t.Fatalf("loan parties = %d/%d", res.Loan.BorrowerUserID, res.Loan.IssuedByUserID)
	}
	// 分配 id 最小的两件
	for i, li := range res.Loan.Items {
		if li.ToolItemID != f.items[i].ID {
			t.Fatalf("allocated item %d, want %d", li.ToolItemID, f.items[i].ID)
		}
		if got := itemStatus(t, f.r, li.ToolItemID); got != models.ToolStatusLoaned {
			t.Fatalf("item status = %s", got)
		}
	}
	if got := itemStatus(t, f.r, f.items[2].ID); got != models.ToolStatusAvailable {
		t.Fatalf("untouched item status = %s", got)
	}
	if requestStatus(t, f.r, req.ID) != models.RequestStatusApproved {
		t.Fatalf("request not approved")
	}
	if res.Request.DecisionAt == nil || res.Request.ApproverUserID == nil || *res.Request.ApproverUserID != f.approver.ID {
		t.Fatalf("decision fields not written: %+v", res.Request)
	}
}

func TestDecideTwiceConflicts(t *testing.T) {
	f := newRequestFixture(t, 2)
	ctx := context.Background()
	req := f.request(t, 1)
	if _, err := f.r.DecideLoanRequest(ctx, req.ID, f.approver.ID, models.RequestStatusRejected, nil); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.r.DecideLoanRequest(ctx, req.ID, f.approver.ID, models.RequestStatusApproved, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if n := availableCount(t, f.r, f.tool.ID); n != 2 {
		t.Fatalf("available = %d, want 2", n)
	}
}

func TestDecideUnknownDecision(t *testing.T) {
	f := newRequestFixture(t, 1)
	req := f.request(t, 1)
	if _, err := f.r.DecideLoanRequest(context.Background(), req.ID, f.approver.ID, "MAYBE", nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestRejectLeavesItemsAlone(t *testing.T) {
	f := newRequestFixture(t, 2)
	req := f.request(t, 2)
	comment := "not this week"
	res, err := f.r.DecideLoanRequest(context.Background(), req.ID, f.approver.ID, models.RequestStatusRejected, &comment)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Loan != nil {
		t.Fatalf("rejection created a loan")
	}
	if res.Request.DecisionComment == nil || *res.Request.DecisionComment != comment {
		t.Fatalf("decision comment = %v", res.Request.DecisionComment)
	}
	if n := availableCount(t, f.r, f.tool.ID); n != 2 {
		t.Fatalf("available = %d, want 2", n)
	}
}

func TestApproveRechecksAvailability(t *testing.T) {
	f := newRequestFixture(t, 2)
	ctx := context.Background()
	req := f.request(t, 2)
	// 申请之后有一件被直接借走
	if _, err := f.r.CreateLoan(ctx, NewLoan{
		BorrowerUserID: f.approver.ID,
		IssuedByUserID: f.approver.ID,
		DueAt:          inDays(3),
		ToolItemIDs:    []uint{f.items[1].ID},
	}); err != nil {
		t.Fatalf("direct loan: %v", err)
	}

	_, err := f.r.DecideLoanRequest(ctx, req.ID, f.approver.ID, models.RequestStatusApproved, nil)
	if !errors.Is(err, ErrInsufficientAvailability) {
		t.Fatalf("err = %v, want insufficient availability", err)
	}
	if !strings.Contains(err.Error(), `"Bohrmaschine"`) {
		t.Fatalf("err = %v, want tool name", err)
	}
	if got := requestStatus(t, f.r, req.ID); got != models.RequestStatusRequested {
		t.Fatalf("failed approval changed status to %s", got)
	}
	if got := itemStatus(t, f.r, f.items[0].ID); got != models.ToolStatusAvailable {
		t.Fatalf("failed approval left item %s", got)
	}
}

func TestCancelRequest(t *testing.T) {
	f := newRequestFixture(t, 1)
	ctx := context.Background()
	req := f.request(t, 1)
	if _, err := f.r.CancelLoanRequest(ctx, req.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := requestStatus(t, f.r, req.ID); got != models.RequestStatusCancelled {
		t.Fatalf("status = %s", got)
	}
	if _, err := f.r.CancelLoanRequest(ctx, req.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("second cancel err = %v, want conflict", err)
	}
	if _, err := f.r.DecideLoanRequest(ctx, req.ID, f.approver.ID, models.RequestStatusApproved, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("decide cancelled err = %v, want conflict", err)
	}
}

func TestListRequestsByDepartmentAndStatus(t *testing.T) {
	f := newRequestFixture(t, 2)
	ctx := context.Background()
	buero := mustDepartment(t, f.r, "Büro")
	other := mustUser(t, f.r, "carl", models.RoleEmployee, buero.ID)
	mine := f.request(t, 1)
	if _, err := f.r.CreateLoanRequest(ctx, NewLoanRequest{
		RequesterUserID: other.ID,
		DueAt:           inDays(2),
		Lines:           []RequestLine{{ToolID: f.tool.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create request: %v", err)
	}

	lagerID := f.borrower.DepartmentID
	got, err := f.r.ListLoanRequests(ctx, LoanRequestFilter{DepartmentID: &lagerID, Status: "requested"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("department listing = %+v", got)
	}
	if _, err := f.r.ListLoanRequests(ctx, LoanRequestFilter{Status: "bogus"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want invalid", err)
	}
}

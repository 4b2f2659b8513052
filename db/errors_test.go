package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"Gin_postgres_redis_tool_lending/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestUniqueViolationDetection(t *testing.T) {
	r := newTestRepo(t)
	mustDepartment(t, r, "Lager")
	// 绕过预检查直接插入，拿到 sqlite 的唯一索引错误
	dbErr := r.DB.Create(&models.Department{Name: "Lager"}).Error
	if dbErr == nil {
		t.Fatalf("duplicate department name inserted")
	}

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"sqlite", dbErr, true},
		{"postgres", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"gorm translated", gorm.ErrDuplicatedKey, true},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := uniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: uniqueViolation = %v, want %v", tc.name, got, tc.want)
		}
	}

	err := duplicateAs(dbErr, "department name %q already in use", "Lager")
	if !errors.Is(err, ErrConflict) || !strings.Contains(err.Error(), "Lager") {
		t.Fatalf("duplicateAs = %v", err)
	}
	if err := duplicateAs(nil, "x"); err != nil {
		t.Fatalf("duplicateAs(nil) = %v", err)
	}
}

// 并发指派时预检查可能看不到对方未提交的写，最后由唯一索引兜底；兜底也必须是 ErrConflict
func TestSetLeadIndexFallbackIsConflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	lager := mustDepartment(t, r, "Lager")
	buero := mustDepartment(t, r, "Büro")
	anna := mustUser(t, r, "anna", models.RoleDepartmentManager, lager.ID)
	if !leadIs(reloadDepartment(t, r, lager.ID), anna.ID) {
		t.Fatalf("anna should lead Lager")
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := lockDepartment(tx, buero.ID)
		if err != nil {
			return err
		}
		return r.setLead(tx, d, &anna.ID, models.LeadReasonAssigned)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if reloadDepartment(t, r, buero.ID).LeadUserID != nil {
		t.Fatalf("Büro got a lead")
	}
}

func TestCreateDepartmentDuplicateName(t *testing.T) {
	r := newTestRepo(t)
	mustDepartment(t, r, "Lager")
	if _, err := r.CreateDepartment(context.Background(), " Lager ", nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

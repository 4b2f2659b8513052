package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// newTestRepo 每个测试一个临时 SQLite 文件，结构和查表数据与生产一致；继任者总选第一个候选
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lending_test.db")
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=busy_timeout(5000)",
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := SeedLookups(context.Background(), gdb); err != nil {
		t.Fatalf("seed: %v", err)
	}
	r := NewRepo(gdb)
	r.Choose = func(int) int { return 0 }
	return r
}

func mustRoleID(t *testing.T, r *Repo, name string) uint {
	t.Helper()
	id, err := roleID(r.DB, name)
	if err != nil {
		t.Fatalf("role %s: %v", name, err)
	}
	return id
}

func mustDepartment(t *testing.T, r *Repo, name string) *models.Department {
	t.Helper()
	d, err := r.CreateDepartment(context.Background(), name, nil)
	if err != nil {
		t.Fatalf("create department %s: %v", name, err)
	}
	return d
}

func mustUser(t *testing.T, r *Repo, first, role string, deptID uint) *models.User {
	t.Helper()
	u, err := r.CreateUser(context.Background(), NewUser{
		Firstname:    first,
		Lastname:     "Test",
		Email:        first + "@example.com",
		Password:     "secret-password",
		IsActive:     true,
		RoleID:       mustRoleID(t, r, role),
		DepartmentID: deptID,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", first, err)
	}
	return u
}

func reloadUser(t *testing.T, r *Repo, id uint) *models.User {
	t.Helper()
	u, err := r.FindUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	return u
}

func reloadDepartment(t *testing.T, r *Repo, id uint) *models.Department {
	t.Helper()
	d, err := r.GetDepartment(context.Background(), id)
	if err != nil {
		t.Fatalf("reload department %d: %v", id, err)
	}
	return d
}

func leadIs(d *models.Department, id uint) bool {
	return d.LeadUserID != nil && *d.LeadUserID == id
}

// assertLeadInvariant：每个 lead 都是本部门的 DEPARTMENT_MANAGER，且没人领导两个部门
func assertLeadInvariant(t *testing.T, r *Repo) {
	t.Helper()
	ds, err := r.ListDepartments(context.Background())
	if err != nil {
		t.Fatalf("list departments: %v", err)
	}
	seen := map[uint]string{}
	for _, d := range ds {
		if d.LeadUserID == nil {
			continue
		}
		if prev, ok := seen[*d.LeadUserID]; ok {
			t.Fatalf("user %d leads both %q and %q", *d.LeadUserID, prev, d.Name)
		}
		seen[*d.LeadUserID] = d.Name
		u := reloadUser(t, r, *d.LeadUserID)
		if u.RoleName() != models.RoleDepartmentManager {
			t.Fatalf("lead %d of %q has role %s", u.ID, d.Name, u.RoleName())
		}
		if u.DepartmentID != d.ID {
			t.Fatalf("lead %d of %q belongs to department %d", u.ID, d.Name, u.DepartmentID)
		}
	}
}

func mustTool(t *testing.T, r *Repo, name string, items int) (*models.Tool, []models.ToolItem) {
	t.Helper()
	ctx := context.Background()
	tool, err := r.CreateTool(ctx, NewTool{Name: name})
	if err != nil {
		t.Fatalf("create tool %s: %v", name, err)
	}
	var out []models.ToolItem
	for i := 0; i < items; i++ {
		it, err := r.CreateToolItem(ctx, NewToolItem{
			InventoryNo: fmt.Sprintf("%s-%03d", name, i+1),
			ToolID:      tool.ID,
		})
		if err != nil {
			t.Fatalf("create tool item: %v", err)
		}
		out = append(out, *it)
	}
	return tool, out
}

func itemStatus(t *testing.T, r *Repo, id uint) string {
	t.Helper()
	it, err := r.GetToolItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get tool item %d: %v", id, err)
	}
	name, err := lookupName(r.DB, &models.ToolStatus{}, "tool status", it.StatusID)
	if err != nil {
		t.Fatalf("status name: %v", err)
	}
	return name
}

func availableCount(t *testing.T, r *Repo, toolID uint) int64 {
	t.Helper()
	id, err := toolStatusID(r.DB, models.ToolStatusAvailable)
	if err != nil {
		t.Fatalf("status id: %v", err)
	}
	n, err := countAvailable(r.DB, toolID, id)
	if err != nil {
		t.Fatalf("count available: %v", err)
	}
	return n
}

func mustConditionID(t *testing.T, r *Repo, name string) uint {
	t.Helper()
	id, err := conditionID(r.DB, name)
	if err != nil {
		t.Fatalf("condition %s: %v", name, err)
	}
	return id
}

func inDays(d int) time.Time { return time.Now().UTC().Add(time.Duration(d) * 24 * time.Hour) }

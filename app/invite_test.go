package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type recordingMailer struct {
	to, link string
	err      error
}

func (m *recordingMailer) SendInvite(to, link string, _ time.Time) error {
	m.to, m.link = to, link
	return m.err
}

func testRepo(t *testing.T) *db.Repo {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        filepath.Join(t.TempDir(), "app_test.db"),
	}, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.SeedLookups(context.Background(), gdb); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db.NewRepo(gdb)
}

func TestInviteLink(t *testing.T) {
	got := InviteLink("https://tools.example.com/", "ab cd")
	if got != "https://tools.example.com/login?inviteToken=ab+cd" {
		t.Fatalf("link = %s", got)
	}
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	if _, ok := NewMailer(Config{}).(logMailer); !ok {
		t.Fatalf("unconfigured SMTP should log only")
	}
	m := NewMailer(Config{SMTPHost: "smtp.example.com", SMTPPort: "587", SMTPUser: "bot@example.com", AppName: "Werkzeug"})
	sm, ok := m.(smtpMailer)
	if !ok || sm.from != "bot@example.com" || sm.addr != "smtp.example.com:587" {
		t.Fatalf("mailer = %#v", m)
	}
}

func TestInviteMIMEHeaders(t *testing.T) {
	msg := inviteMIME("Werkzeug", "bot@example.com", "anna@example.com", "Einladung", "<p>x</p>")
	head, body, ok := strings.Cut(msg, "\r\n\r\n")
	if !ok || body != "<p>x</p>" {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(head, "From: Werkzeug <bot@example.com>") || !strings.Contains(head, "Content-Type: text/html") {
		t.Fatalf("headers = %q", head)
	}
}

func TestIssueInvite(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	dept, err := repo.CreateDepartment(ctx, "Lager", nil)
	if err != nil {
		t.Fatalf("department: %v", err)
	}
	roles, err := repo.ListRoles(ctx)
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	var emp uint
	for _, r := range roles {
		if r.Name == models.RoleEmployee {
			emp = r.ID
		}
	}
	u, err := repo.CreateUser(ctx, db.NewUser{
		Firstname: "Anna", Lastname: "Test", Email: "anna@example.com", Password: "secret-password",
		IsActive: true, RoleID: emp, DepartmentID: dept.ID,
	})
	if err != nil {
		t.Fatalf("user: %v", err)
	}

	mail := &recordingMailer{err: errors.New("smtp down")}
	iv := &Invites{Repo: repo, Cfg: Config{WebOrigin: "http://localhost:5173"}, Mail: mail}
	issued, err := iv.Issue(ctx, u.ID, time.Hour, "1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if mail.to != u.Email || mail.link != issued.Link {
		t.Fatalf("mail to=%s link=%s", mail.to, mail.link)
	}
	if !strings.HasSuffix(issued.Link, issued.Invite.Token) {
		t.Fatalf("link %s does not carry token", issued.Link)
	}
	if _, err := repo.GetInviteByToken(ctx, issued.Invite.Token); err != nil {
		t.Fatalf("invite not stored despite mail failure: %v", err)
	}
	if _, err := iv.Issue(ctx, 9999, time.Hour, "1"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("unknown user err = %v", err)
	}
}

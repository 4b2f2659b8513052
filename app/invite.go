// app/invite.go
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"
)

// NewToken 32 位 hex，用作邀请 token / 生成的初始密码
func NewToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// InviteLink 前端登录页带 inviteToken 即进入 passkey 登记
func InviteLink(webOrigin, token string) string {
	return strings.TrimRight(webOrigin, "/") + "/login?inviteToken=" + url.QueryEscape(token)
}

type Mailer interface {
	SendInvite(to, link string, expiresAt time.Time) error
}

// logMailer 未配置 SMTP 时使用：只把链接打到日志
type logMailer struct{}

func (logMailer) SendInvite(to, link string, expiresAt time.Time) error {
	log.Printf("[invite email] SMTP not configured, link for %s: %s (valid until %s)", to, link, expiresAt.Format(time.RFC3339))
	return nil
}

type smtpMailer struct {
	addr    string
	auth    smtp.Auth
	from    string
	appName string
}

func (m smtpMailer) SendInvite(to, link string, expiresAt time.Time) error {
	subject := m.appName + " Einladung"
	body := fmt.Sprintf(`<div style="font-family:Arial,sans-serif;font-size:14px;color:#222">
<p>Hallo,</p>
<p>für dich wurde ein Zugang bei <b>%s</b> angelegt. Über den folgenden Link registrierst du deinen Passkey:</p>
<p><a href="%s">%s</a></p>
<p>Der Link ist gültig bis %s.</p>
</div>`, m.appName, link, link, expiresAt.Format("02.01.2006 15:04 MST"))
	return smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(inviteMIME(m.appName, m.from, to, subject, body)))
}

func inviteMIME(fromName, fromAddr, to, subject, html string) string {
	h := []string{
		fmt.Sprintf("From: %s <%s>", fromName, fromAddr),
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	return strings.Join(h, "\r\n") + "\r\n\r\n" + html
}

// NewMailer SMTP_HOST 和发件人都配置了才真正发信
func NewMailer(cfg Config) Mailer {
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	if cfg.SMTPHost == "" || from == "" {
		return logMailer{}
	}
	return smtpMailer{
		addr:    cfg.SMTPHost + ":" + cfg.SMTPPort,
		auth:    smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost),
		from:    from,
		appName: cfg.AppName,
	}
}

// Invites 给已存在的用户发 passkey 登记邀请
type Invites struct {
	Repo *db.Repo
	Cfg  Config
	Mail Mailer
}

func NewInvites(repo *db.Repo, cfg Config) *Invites {
	return &Invites{Repo: repo, Cfg: cfg, Mail: NewMailer(cfg)}
}

type IssuedInvite struct {
	Invite *models.Invite `json:"invite"`
	Link   string         `json:"link"`
}

// Issue 落库后再发信；发信失败只记日志，邀请照样有效
func (iv *Invites) Issue(ctx context.Context, userID uint, ttl time.Duration, createdBy string) (*IssuedInvite, error) {
	token := NewToken()
	inv, err := iv.Repo.CreateInvite(ctx, userID, token, time.Now().Add(ttl), createdBy)
	if err != nil {
		return nil, err
	}
	link := InviteLink(iv.Cfg.WebOrigin, token)
	if err := iv.Mail.SendInvite(inv.Email, link, inv.ExpiresAt); err != nil {
		log.Printf("[invite email] send to %s failed: %v", inv.Email, err)
	}
	return &IssuedInvite{Invite: inv, Link: link}, nil
}

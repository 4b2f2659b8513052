// controllers/srv.go
package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/db"
	"Gin_postgres_redis_tool_lending/models"
	"Gin_postgres_redis_tool_lending/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

// Srv 各 controller 共用的依赖
type Srv struct {
	WA      *webauthn.WebAuthn
	Repo    *db.Repo
	Sess    *session.Store
	AppSess *session.AppSessionStore
	Cfg     app.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		WA:      a.WA,
		Repo:    db.NewRepo(a.DB),
		Sess:    session.NewStore(a.RDB, a.Config.SessionTTL),
		AppSess: a.AppSessions(),
		Cfg:     a.Config,
	}
}

// writeSessionCookie maxAge < 0 删除 cookie
func (s *Srv) writeSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.Cfg.WebOrigin, "https://"),
		MaxAge:   maxAge,
	})
}

// issueSession 登录成功（密码 / passkey / 邀请登记）后统一走这里
func (s *Srv) issueSession(ctx context.Context, c *gin.Context, userID uint) error {
	ip, ua := c.ClientIP(), c.Request.UserAgent()
	if err := s.Repo.TouchUserLogin(ctx, userID, ip, ua); err != nil {
		log.Printf("[login] touch user %d: %v", userID, err)
	}
	as, err := s.AppSess.Create(ctx, userID, ip, ua)
	if err != nil {
		return err
	}
	s.writeSessionCookie(c.Writer, as.ID, int(s.AppSess.TTL().Seconds()))
	return nil
}

// waUser 适配 webauthn.User；userHandle 是 User.Handle 解析出的 16 字节 UUID
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte {
	id, err := uuid.Parse(u.user.Handle)
	if err != nil {
		return []byte(u.user.Handle)
	}
	return id[:]
}

func (u *waUser) WebAuthnName() string { return u.user.Email }

func (u *waUser) WebAuthnDisplayName() string {
	return strings.TrimSpace(u.user.Firstname + " " + u.user.Lastname)
}

func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

// exclusions 已登记的凭据，避免同一个认证器重复登记
func (u *waUser) exclusions() []protocol.CredentialDescriptor {
	out := make([]protocol.CredentialDescriptor, 0, len(u.creds))
	for _, c := range u.creds {
		out = append(out, c.Descriptor())
	}
	return out
}

func fromStoredCredential(c models.Credential) webauthn.Credential {
	var transports []protocol.AuthenticatorTransport
	if c.TransportsJSON != "" {
		_ = json.Unmarshal([]byte(c.TransportsJSON), &transports)
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
	}
}

func toStoredCredential(userID uint, cred *webauthn.Credential) *models.Credential {
	transports, _ := json.Marshal(cred.Transport)
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
		TransportsJSON:  string(transports),
	}
}

func (s *Srv) withCredentials(ctx context.Context, u *models.User) (*waUser, error) {
	cs, err := s.Repo.LoadUserCredentials(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	wu := &waUser{user: *u, creds: make([]webauthn.Credential, 0, len(cs))}
	for _, c := range cs {
		wu.creds = append(wu.creds, fromStoredCredential(c))
	}
	return wu, nil
}

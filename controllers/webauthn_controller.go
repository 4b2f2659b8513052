// controllers/webauthn_controller.go
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/models"
	"Gin_postgres_redis_tool_lending/session"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

const ceremonyTimeout = 3 * time.Second

var (
	errInviteUnusable  = errors.New("invalid or expired invite")
	errAccountDisabled = errors.New("account disabled")
)

// ceremonyError 仪式相关的错误；其余交给 writeError
func ceremonyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInviteUnusable), errors.Is(err, errAccountDisabled):
		c.JSON(http.StatusForbidden, app.H{"error": err.Error()})
	case errors.Is(err, session.ErrCeremonyExpired):
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
	default:
		writeError(c, err)
	}
}

func (s *Srv) beginRegistration(wu *waUser) (*protocol.CredentialCreation, *webauthn.SessionData, error) {
	return s.WA.BeginRegistration(wu,
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithExclusions(wu.exclusions()),
	)
}

// inviteUser 邀请必须可用，被邀请的用户必须存在且启用
func (s *Srv) inviteUser(ctx context.Context, token string) (*waUser, error) {
	inv, err := s.Repo.GetInviteByToken(ctx, token)
	if err != nil || !inv.Usable(s.Repo.Now()) {
		return nil, errInviteUnusable
	}
	u, err := s.Repo.FindUserByID(ctx, inv.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errAccountDisabled
	}
	return s.withCredentials(ctx, u)
}

// ---- 邀请登记：管理员先建好用户，用户凭邀请登记第一个 passkey ----

// POST /webauthn/register/begin {inviteToken}
func (s *Srv) BeginRegistration(c *gin.Context) {
	var in struct {
		InviteToken string `json:"inviteToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wu, err := s.inviteUser(ctx, in.InviteToken)
	if err != nil {
		ceremonyError(c, err)
		return
	}
	opts, sd, err := s.beginRegistration(wu)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Sess.Save(ctx, session.Enrol, in.InviteToken, sd); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

// POST /webauthn/register/finish?inviteToken=
func (s *Srv) FinishRegistration(c *gin.Context) {
	token := c.Query("inviteToken")
	if token == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing inviteToken"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wu, err := s.inviteUser(ctx, token)
	if err != nil {
		ceremonyError(c, err)
		return
	}
	sd, err := s.Sess.Take(ctx, session.Enrol, token)
	if err != nil {
		ceremonyError(c, err)
		return
	}
	cred, err := s.WA.FinishRegistration(wu, *sd, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	// 先占用邀请，防止同一 token 并发登记两次
	if _, err := s.Repo.ConsumeInvite(ctx, token); err != nil {
		writeError(c, err)
		return
	}
	if err := s.Repo.AddCredential(ctx, toStoredCredential(wu.user.ID, cred)); err != nil {
		writeError(c, err)
		return
	}
	if err := s.issueSession(ctx, c, wu.user.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "email": wu.user.Email})
}

// ---- 已登录用户追加 passkey ----

func (s *Srv) currentWAUser(ctx context.Context, c *gin.Context) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, app.CurrentUserID(c))
	if err != nil {
		return nil, err
	}
	return s.withCredentials(ctx, u)
}

func (s *Srv) BeginAddCredential(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wu, err := s.currentWAUser(ctx, c)
	if err != nil {
		writeError(c, err)
		return
	}
	opts, sd, err := s.beginRegistration(wu)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := s.Sess.Save(ctx, session.AddKey, wu.user.Handle, sd); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"opts": opts})
}

func (s *Srv) FinishAddCredential(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	wu, err := s.currentWAUser(ctx, c)
	if err != nil {
		writeError(c, err)
		return
	}
	sd, err := s.Sess.Take(ctx, session.AddKey, wu.user.Handle)
	if err != nil {
		ceremonyError(c, err)
		return
	}
	cred, err := s.WA.FinishRegistration(wu, *sd, c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if err := s.Repo.AddCredential(ctx, toStoredCredential(wu.user.ID, cred)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "credentials": len(wu.creds) + 1})
}

// ---- 登录：指定 email，或 discoverable（由认证器选账号） ----

type loginBeginReq struct {
	Email        string `json:"email"`
	Discoverable bool   `json:"discoverable"`
}

type loginBeginResp struct {
	Options   *protocol.CredentialAssertion `json:"options"`
	SessionID string                        `json:"sessionId"`
}

func (s *Srv) BeginLogin(c *gin.Context) {
	var req loginBeginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Discoverable && req.Email == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "email is required unless discoverable"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	uv := webauthn.WithUserVerification(protocol.VerificationRequired)
	var (
		opts *protocol.CredentialAssertion
		sd   *webauthn.SessionData
		err  error
	)
	if req.Discoverable {
		opts, sd, err = s.WA.BeginDiscoverableLogin(uv)
	} else {
		u, ferr := s.Repo.FindUserByEmail(ctx, req.Email)
		if ferr != nil {
			writeError(c, ferr)
			return
		}
		wu, ferr := s.withCredentials(ctx, u)
		if ferr != nil {
			writeError(c, ferr)
			return
		}
		opts, sd, err = s.WA.BeginLogin(wu, uv)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	sid := uuid.NewString()
	if err := s.Sess.Save(ctx, session.Login, sid, sd); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginBeginResp{Options: opts, SessionID: sid})
}

// assert 校验断言，返回登录的用户
func (s *Srv) assert(ctx context.Context, c *gin.Context, sd *webauthn.SessionData) (*models.User, *webauthn.Credential, error) {
	if email := c.Query("email"); email != "" {
		u, err := s.Repo.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, nil, err
		}
		wu, err := s.withCredentials(ctx, u)
		if err != nil {
			return nil, nil, err
		}
		cred, err := s.WA.FinishLogin(wu, *sd, c.Request)
		if err != nil {
			return nil, nil, err
		}
		return u, cred, nil
	}
	resolve := func(rawID, _ []byte) (webauthn.User, error) {
		u, _, err := s.Repo.FindUserByCredentialID(ctx, rawID)
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("credential not found")
		}
		wu, err := s.withCredentials(ctx, u)
		if err != nil {
			return nil, err
		}
		return wu, nil
	}
	wu, cred, err := s.WA.FinishPasskeyLogin(resolve, *sd, c.Request)
	if err != nil {
		return nil, nil, err
	}
	u := wu.(*waUser).user
	return &u, cred, nil
}

// POST /webauthn/login/finish?sessionId=[&email=]
func (s *Srv) FinishLogin(c *gin.Context) {
	sid := c.Query("sessionId")
	if sid == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "missing sessionId"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), ceremonyTimeout)
	defer cancel()

	sd, err := s.Sess.Take(ctx, session.Login, sid)
	if err != nil {
		ceremonyError(c, err)
		return
	}
	u, cred, err := s.assert(ctx, c, sd)
	if err != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": err.Error()})
		return
	}
	if err := s.Repo.RecordCredentialUse(ctx, cred.ID, cred.Authenticator.SignCount, cred.Authenticator.CloneWarning); err != nil {
		log.Printf("[login] record credential use for user %d: %v", u.ID, err)
	}
	if cred.Authenticator.CloneWarning {
		log.Printf("[login] clone warning on credential of user %d", u.ID)
	}

	if !u.IsActive {
		ceremonyError(c, errAccountDisabled)
		return
	}
	if err := s.issueSession(ctx, c, u.ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true, "redirect": "/dashboard"})
}

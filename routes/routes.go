package routes

import (
	"Gin_postgres_redis_tool_lending/app"
	"Gin_postgres_redis_tool_lending/controllers"
	"Gin_postgres_redis_tool_lending/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s.Repo, s.AppSess, a.Config)
	deptCtl := controllers.GetDepartmentController(s)
	toolCtl := controllers.GetToolController(s)
	reqCtl := controllers.GetLoanRequestController(s)
	loanCtl := controllers.GetLoanController(s)
	issueCtl := controllers.GetIssueController(s)
	inviteCtl := controllers.GetInviteController(s)

	// 复用的中间件
	authMW := app.AuthRequired(s.AppSess, s.Repo, a.Config)
	adminMW := app.AdminOnly()
	staffMW := app.RequireRole(models.RoleAdmin, models.RoleDepartmentManager)
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, a.Config.LastSeenThrottle)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ------------------------------
	// 登录（密码 + Passkey）
	// ------------------------------
	auth := r.Group("/auth")
	{
		auth.POST("/login", s.PasswordLogin)
		auth.POST("/logout", s.Logout)
		auth.GET("/whoami", authMW, seenMW, s.WhoAmI)
	}

	wa := r.Group("/webauthn")
	{
		// 公开：注册/登录流程
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)

		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	// 已登录用户添加新凭据（绑定手机等）
	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
		creds.GET("", s.ListCredentials)
		creds.DELETE("/:id", s.DeleteCredential)
	}

	// ------------------------------
	// 邀请（仅管理员）
	// ------------------------------
	admin := r.Group("/admin", authMW, adminMW)
	{
		admin.POST("/invites", inviteCtl.CreateInvite)
		admin.GET("/invites", inviteCtl.ListInvites)
	}

	api := r.Group("/api", authMW, seenMW)

	// 查表（所有登录用户）
	api.GET("/lookups", toolCtl.Lookups)
	api.GET("/roles", uc.ListRoles)

	// ------------------------------
	// 用户 / 部门管理（仅管理员）
	// ------------------------------
	users := api.Group("/users", adminMW)
	{
		users.GET("", uc.ListUsers) // ?q=&departmentId=&role=&active=&page=&size=
		users.POST("", uc.CreateUser)
		users.GET("/:id", uc.GetUser)
		users.PATCH("/:id", uc.UpdateUser)
		users.DELETE("/:id", uc.DeleteUser)
	}

	api.GET("/departments", deptCtl.List)
	api.GET("/departments/:id", deptCtl.Get)
	depts := api.Group("/departments", adminMW)
	{
		depts.POST("", deptCtl.Create)
		depts.PATCH("/:id", deptCtl.Update)
		depts.PUT("/:id/lead", deptCtl.SetLead)
		depts.DELETE("/:id", deptCtl.Delete)
	}
	api.GET("/leadership-log", adminMW, deptCtl.LeadershipLog)

	// ------------------------------
	// 工具目录 + 实物
	// ------------------------------
	api.GET("/tool-categories", toolCtl.ListCategories)
	api.POST("/tool-categories", adminMW, toolCtl.CreateCategory)

	api.GET("/tools", toolCtl.ListTools)
	api.GET("/tools/:id", toolCtl.GetTool)
	api.GET("/tools/:id/availability", toolCtl.Availability)
	tools := api.Group("/tools", adminMW)
	{
		tools.POST("", toolCtl.CreateTool)
		tools.PATCH("/:id", toolCtl.UpdateTool)
		tools.DELETE("/:id", toolCtl.DeleteTool)
	}

	api.GET("/tool-items", toolCtl.ListItems)
	api.GET("/tool-items/:id", toolCtl.GetItem)
	api.GET("/tool-items/:id/history", staffMW, toolCtl.History)
	items := api.Group("/tool-items", adminMW)
	{
		items.POST("", toolCtl.CreateItem)
		items.PATCH("/:id", toolCtl.UpdateItem)
		items.DELETE("/:id", toolCtl.DeleteItem)
	}
	api.POST("/tool-items/:id/retire", staffMW, toolCtl.RetireItem)
	api.GET("/admin/tool-items", adminMW, toolCtl.AdminListItems) // ?q=&toolId=&status=&page=&size=

	// ------------------------------
	// 借用申请
	// ------------------------------
	reqs := api.Group("/loan-requests")
	{
		reqs.POST("", reqCtl.Create)
		reqs.GET("", reqCtl.List)
		reqs.GET("/:id", reqCtl.Get)
		reqs.POST("/:id/cancel", reqCtl.Cancel)
		reqs.POST("/:id/decision", staffMW, reqCtl.Decide)
		reqs.DELETE("/:id", adminMW, reqCtl.Delete)
	}

	// ------------------------------
	// 借还
	// ------------------------------
	loans := api.Group("/loans")
	{
		loans.GET("", loanCtl.List) // ?borrowerId=&toolItemId=&status=open|returned
		loans.GET("/mine", loanCtl.Mine)
		loans.GET("/overdue", staffMW, loanCtl.Overdue)
		loans.GET("/:id", loanCtl.Get)
		loans.POST("", staffMW, loanCtl.Create)
		loans.POST("/:id/return", staffMW, loanCtl.Return)
		loans.DELETE("/:id", adminMW, loanCtl.Delete)
	}

	// ------------------------------
	// 问题报告
	// ------------------------------
	issues := api.Group("/issues")
	{
		issues.POST("", issueCtl.Create)
		issues.GET("", issueCtl.List)
		issues.GET("/:id", issueCtl.Get)
		issues.PATCH("/:id/status", staffMW, issueCtl.SetStatus)
		issues.POST("/:id/resolve", staffMW, issueCtl.Resolve)
		issues.DELETE("/:id", adminMW, issueCtl.Delete)
	}
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/kazi-backend/internal/config"
	"github.com/ignatzorin/kazi-backend/internal/http/handlers"
	"github.com/ignatzorin/kazi-backend/internal/http/middleware"
)

// Handlers набор обработчиков, которые подключает роутер.
type Handlers struct {
	Health        *handlers.HealthHandler
	Realtime      *handlers.RealtimeHandler
	Content       *handlers.ContentHandler
	SEO           *handlers.SEOHandler
	Proposals     *handlers.ProposalHandler
	Purchases     *handlers.PurchaseHandler
	Plans         *handlers.PlanHandler
	Subscriptions *handlers.SubscriptionHandler
	System        *handlers.SystemHandler
	Teams         *handlers.TeamHandler
	Timesheets    *handlers.TimesheetHandler
	Translations  *handlers.TranslationHandler
	Tutorials     *handlers.TutorialHandler
	URLs          *handlers.URLHandler
	Workflows     *handlers.WorkflowHandler
	Files         *handlers.FileHandler
	Portfolio     *handlers.PortfolioHandler
	APIKeys       *handlers.APIKeyHandler
	Audio         *handlers.AudioHandler
}

// Options middleware и endpoints, собранные в main.
type Options struct {
	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	RateLimit    gin.HandlerFunc
	Observer     middleware.HTTPObserver
	Metrics      http.Handler
}

func SetupRouter(cfg *config.Config, h Handlers, opts Options) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger(opts.Observer))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	r.GET("/r/:code", h.URLs.Redirect)

	api := r.Group("/api")
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit)
	}

	api.GET("/realtime", h.Realtime.Handle)
	api.POST("/billing/webhook", h.Subscriptions.Webhook)

	// Публичные маршруты
	public := api.Group("/public")
	{
		public.POST("/content/:id/view", h.Content.RegisterView)

		public.GET("/portfolio", h.Portfolio.ListPublic)
		public.GET("/portfolio/:id", h.Portfolio.GetPublic)

		public.GET("/tutorials", h.Tutorials.ListPublished)
		public.GET("/tutorials/:id", h.Tutorials.GetPublic)

		public.GET("/proposals/:token", h.Proposals.PublicView)
		public.POST("/proposals/:token/sign", h.Proposals.PublicSign)
		public.POST("/proposals/:token/decline", h.Proposals.PublicDecline)
	}

	plans := api.Group("/plans")
	if opts.OptionalAuth != nil {
		plans.Use(opts.OptionalAuth)
	}
	{
		plans.GET("", h.Plans.List)
		plans.GET("/compare", h.Plans.Compare)
		plans.GET("/:slug", h.Plans.GetBySlug)
	}
	api.POST("/seo/analyze", h.SEO.Analyze)

	// Защищённые маршруты
	protected := api.Group("")
	protected.Use(opts.Auth)

	content := protected.Group("/content", middleware.RequireScope("content"))
	{
		content.POST("", h.Content.Create)
		content.GET("", h.Content.List)
		content.GET("/:id", h.Content.Get)
		content.PUT("/:id", h.Content.Update)
		content.DELETE("/:id", h.Content.Delete)
		content.POST("/:id/publish", h.Content.Publish)
		content.POST("/:id/archive", h.Content.Archive)
		content.POST("/:id/duplicate", h.Content.Duplicate)
		content.GET("/:id/blocks", h.Content.ListBlocks)
		content.POST("/:id/blocks", h.Content.AddBlock)
		content.PUT("/:id/blocks/order", h.Content.ReorderBlocks)
		content.PUT("/:id/blocks/:blockId", middleware.UUIDValidator("blockId"), h.Content.UpdateBlock)
		content.DELETE("/:id/blocks/:blockId", middleware.UUIDValidator("blockId"), h.Content.DeleteBlock)
		content.GET("/:id/versions", h.Content.ListVersions)
		content.POST("/:id/versions/:version/restore", h.Content.RestoreVersion)
		content.POST("/:id/seo", h.SEO.AnalyzeContent)
		content.GET("/:id/seo", h.SEO.ListAnalyses)
	}

	proposals := protected.Group("/proposals", middleware.RequireScope("proposals"))
	{
		proposals.POST("", h.Proposals.Create)
		proposals.GET("", h.Proposals.List)
		proposals.GET("/stats", h.Proposals.Stats)
		proposals.GET("/:id", h.Proposals.Get)
		proposals.PUT("/:id", h.Proposals.Update)
		proposals.DELETE("/:id", h.Proposals.Delete)
		proposals.POST("/:id/duplicate", h.Proposals.Duplicate)
		proposals.POST("/:id/send", h.Proposals.Send)
		proposals.POST("/:id/recalculate", h.Proposals.Recalculate)
		proposals.POST("/:id/items", h.Proposals.AddItem)
		proposals.PUT("/:id/items/:itemId", h.Proposals.UpdateItem)
		proposals.DELETE("/:id/items/:itemId", h.Proposals.RemoveItem)
	}

	purchases := protected.Group("/purchases", middleware.RequireScope("purchases"))
	{
		purchases.POST("", h.Purchases.Create)
		purchases.GET("", h.Purchases.List)
		purchases.GET("/owned", h.Purchases.Owns)
		purchases.GET("/stats", h.Purchases.Stats)
		purchases.GET("/:id", h.Purchases.Get)
		purchases.POST("/:id/complete", h.Purchases.Complete)
		purchases.POST("/:id/fail", h.Purchases.Fail)
		purchases.POST("/:id/refund", h.Purchases.Refund)
	}

	subscriptions := protected.Group("/subscriptions", middleware.RequireScope("subscriptions"))
	{
		subscriptions.GET("", h.Subscriptions.History)
		subscriptions.POST("", h.Subscriptions.Subscribe)
		subscriptions.GET("/current", h.Subscriptions.Current)
		subscriptions.PUT("/current/plan", h.Subscriptions.ChangePlan)
		subscriptions.POST("/current/cancel", h.Subscriptions.Cancel)
		subscriptions.POST("/current/resume", h.Subscriptions.Resume)
	}
	protected.POST("/billing/checkout", h.Subscriptions.Checkout)
	protected.POST("/billing/portal", h.Subscriptions.Portal)

	teams := protected.Group("/teams", middleware.RequireScope("teams"))
	{
		teams.POST("", h.Teams.Create)
		teams.GET("", h.Teams.List)
		teams.GET("/:id", h.Teams.Get)
		teams.PUT("/:id", h.Teams.Update)
		teams.DELETE("/:id", h.Teams.Delete)
		teams.GET("/:id/members", h.Teams.Members)
		teams.PUT("/:id/members/:userId", middleware.UUIDValidator("userId"), h.Teams.UpdateMemberRole)
		teams.DELETE("/:id/members/:userId", middleware.UUIDValidator("userId"), h.Teams.RemoveMember)
		teams.POST("/:id/leave", h.Teams.Leave)
		teams.POST("/:id/invitations", h.Teams.Invite)
		teams.GET("/:id/invitations", h.Teams.Invitations)
		teams.DELETE("/:id/invitations/:invitationId", middleware.UUIDValidator("invitationId"), h.Teams.RevokeInvitation)
	}
	protected.POST("/invitations/:token/accept", h.Teams.AcceptInvitation)

	timesheets := protected.Group("/timesheets", middleware.RequireScope("timesheets"))
	{
		timesheets.POST("", h.Timesheets.Create)
		timesheets.GET("", h.Timesheets.List)
		timesheets.GET("/weekly", h.Timesheets.Weekly)
		timesheets.GET("/:id", h.Timesheets.Get)
		timesheets.PUT("/:id", h.Timesheets.Update)
		timesheets.DELETE("/:id", h.Timesheets.Delete)
		timesheets.POST("/:id/entries", h.Timesheets.AddEntry)
		timesheets.PUT("/:id/entries/:entryId", h.Timesheets.UpdateEntry)
		timesheets.DELETE("/:id/entries/:entryId", h.Timesheets.DeleteEntry)
		timesheets.POST("/:id/submit", h.Timesheets.Submit)
		timesheets.POST("/:id/approve", h.Timesheets.Approve)
		timesheets.POST("/:id/reject", h.Timesheets.Reject)
	}

	translations := protected.Group("/translations", middleware.RequireScope("translations"))
	{
		translations.POST("/keys", h.Translations.CreateKey)
		translations.GET("/keys", h.Translations.ListKeys)
		translations.PUT("/keys/:id", h.Translations.UpdateKey)
		translations.DELETE("/keys/:id", h.Translations.DeleteKey)
		translations.PUT("/keys/:id/values", h.Translations.Upsert)
		translations.GET("/locales/:locale", h.Translations.List)
		translations.GET("/locales/:locale/export", h.Translations.Export)
		translations.POST("/:id/approve", h.Translations.Approve)
		translations.POST("/import", h.Translations.Import)
		translations.GET("/progress", h.Translations.Progress)
	}

	tutorials := protected.Group("/tutorials", middleware.RequireScope("tutorials"))
	{
		tutorials.POST("", h.Tutorials.Create)
		tutorials.GET("", h.Tutorials.ListMine)
		tutorials.GET("/progress", h.Tutorials.MyProgress)
		tutorials.GET("/:id", h.Tutorials.Get)
		tutorials.PUT("/:id", h.Tutorials.Update)
		tutorials.DELETE("/:id", h.Tutorials.Delete)
		tutorials.POST("/:id/publish", h.Tutorials.Publish)
		tutorials.POST("/:id/unpublish", h.Tutorials.Unpublish)
		tutorials.POST("/:id/steps", h.Tutorials.AddStep)
		tutorials.PUT("/:id/steps/:stepId", h.Tutorials.UpdateStep)
		tutorials.DELETE("/:id/steps/:stepId", h.Tutorials.DeleteStep)
		tutorials.POST("/:id/steps/:stepId/complete", h.Tutorials.CompleteStep)
		tutorials.POST("/:id/start", h.Tutorials.Start)
		tutorials.GET("/:id/progress", h.Tutorials.Progress)
	}

	urls := protected.Group("/urls", middleware.RequireScope("urls"))
	{
		urls.POST("", h.URLs.Create)
		urls.GET("", h.URLs.List)
		urls.GET("/:id", h.URLs.Get)
		urls.PUT("/:id", h.URLs.Update)
		urls.DELETE("/:id", h.URLs.Delete)
		urls.POST("/:id/toggle", h.URLs.Toggle)
		urls.POST("/:id/redirects", h.URLs.AddRedirect)
		urls.GET("/:id/redirects", h.URLs.ListRedirects)
		urls.DELETE("/:id/redirects/:redirectId", middleware.UUIDValidator("redirectId"), h.URLs.DeleteRedirect)
		urls.GET("/:id/stats", h.URLs.Stats)
	}

	workflows := protected.Group("/workflows", middleware.RequireScope("workflows"))
	{
		workflows.POST("", h.Workflows.Create)
		workflows.GET("", h.Workflows.List)
		workflows.GET("/:id", h.Workflows.Get)
		workflows.PUT("/:id", h.Workflows.Update)
		workflows.DELETE("/:id", h.Workflows.Delete)
		workflows.PUT("/:id/actions", h.Workflows.SetActions)
		workflows.POST("/:id/execute", h.Workflows.Execute)
		workflows.GET("/:id/executions", h.Workflows.ListExecutions)
		workflows.POST("/:id/schedules", h.Workflows.CreateSchedule)
		workflows.GET("/:id/schedules", h.Workflows.ListSchedules)
		workflows.PUT("/:id/schedules/:scheduleId", h.Workflows.UpdateSchedule)
		workflows.DELETE("/:id/schedules/:scheduleId", h.Workflows.DeleteSchedule)
	}
	executions := protected.Group("/workflow-executions", middleware.RequireScope("workflows"))
	{
		executions.GET("/:id", h.Workflows.GetExecution)
		executions.POST("/:id/cancel", h.Workflows.CancelExecution)
	}

	files := protected.Group("/files", middleware.RequireScope("files"))
	{
		files.POST("", h.Files.Upload)
		files.GET("", h.Files.List)
		files.GET("/usage", h.Files.Usage)
		files.DELETE("/trash", h.Files.EmptyTrash)
		files.GET("/:id", h.Files.Get)
		files.GET("/:id/download", h.Files.Download)
		files.PATCH("/:id/name", h.Files.Rename)
		files.PATCH("/:id/folder", h.Files.Move)
		files.POST("/:id/star", h.Files.ToggleStar)
		files.POST("/:id/trash", h.Files.Trash)
		files.POST("/:id/restore", h.Files.Restore)
		files.DELETE("/:id", h.Files.Delete)
		files.POST("/:id/watermark", h.Files.Watermark)
	}

	portfolio := protected.Group("/portfolio", middleware.RequireScope("portfolio"))
	{
		portfolio.POST("", h.Portfolio.Create)
		portfolio.GET("", h.Portfolio.ListMine)
		portfolio.GET("/stats", h.Portfolio.Stats)
		portfolio.PUT("/order", h.Portfolio.Reorder)
		portfolio.PUT("/:id", h.Portfolio.Update)
		portfolio.DELETE("/:id", h.Portfolio.Delete)
		portfolio.POST("/:id/feature", h.Portfolio.ToggleFeatured)
		portfolio.POST("/:id/like", h.Portfolio.Like)
		portfolio.DELETE("/:id/like", h.Portfolio.Unlike)
		portfolio.GET("/:id/like", h.Portfolio.LikeStatus)
	}

	audio := protected.Group("/audio/projects", middleware.RequireScope("audio"))
	{
		audio.POST("", h.Audio.CreateProject)
		audio.GET("", h.Audio.ListProjects)
		audio.GET("/:id", h.Audio.GetProject)
		audio.PUT("/:id", h.Audio.UpdateProject)
		audio.DELETE("/:id", h.Audio.DeleteProject)
		audio.POST("/:id/tracks", h.Audio.AddTrack)
		audio.PATCH("/:id/tracks/:trackId", h.Audio.UpdateTrack)
		audio.DELETE("/:id/tracks/:trackId", h.Audio.DeleteTrack)
		audio.GET("/:id/mixdown", h.Audio.Mixdown)
	}

	keys := protected.Group("/api-keys", middleware.RequireScope("api_keys"))
	{
		keys.POST("", h.APIKeys.Create)
		keys.GET("", h.APIKeys.List)
		keys.DELETE("/:id", h.APIKeys.Revoke)
		keys.POST("/:id/rotate", h.APIKeys.Rotate)
	}

	// Администрирование
	admin := protected.Group("", middleware.RequireAdmin())
	{
		admin.GET("/admin/plans/:id", h.Plans.Get)
		admin.POST("/admin/plans", h.Plans.Create)
		admin.PUT("/admin/plans/:id", h.Plans.Update)
		admin.DELETE("/admin/plans/:id", h.Plans.Deactivate)
		admin.PUT("/admin/plans/:id/features", h.Plans.SetFeatures)

		admin.GET("/system/settings", h.System.ListSettings)
		admin.GET("/system/settings/:key", h.System.GetSetting)
		admin.PUT("/system/settings/:key", h.System.PutSetting)
		admin.DELETE("/system/settings/:key", h.System.DeleteSetting)
		admin.POST("/system/logs", h.System.WriteLog)
		admin.GET("/system/logs", h.System.ListLogs)
		admin.DELETE("/system/logs", h.System.PurgeLogs)
		admin.POST("/system/alerts", h.System.CreateAlert)
		admin.GET("/system/alerts", h.System.ListAlerts)
		admin.POST("/system/alerts/:id/acknowledge", h.System.AcknowledgeAlert)
		admin.POST("/system/alerts/:id/resolve", h.System.ResolveAlert)
		admin.GET("/system/status", h.System.Status)
	}

	return r
}

package http

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"yakunote/internal/bootstrap"
	"yakunote/internal/transport/http/handler"
	"yakunote/internal/transport/http/middleware"
	"yakunote/internal/web"
)

func NewRouter(app *bootstrap.App) (*gin.Engine, error) {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS())

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse page templates failed: %w", err)
	}
	router.SetHTMLTemplate(templates)

	log := app.Logger
	secure := strings.HasPrefix(app.Config.PublicBaseURL(), "https://")
	session := middleware.Session(app.Auth, secure, log)

	healthHandler := handler.NewHealthHandler(app)
	summaryHandler := handler.NewSummaryHandler(app.Extractor, app.Summaries, log)
	libraryHandler := handler.NewLibraryHandler(app.Library, log)
	authHandler := handler.NewAuthHandler(app.Auth, secure, log)
	pageHandler := handler.NewPageHandler(app.Config.App.Name)

	router.GET("/healthz", healthHandler.Check)

	pages := router.Group("/", session)
	pages.GET("/", pageHandler.Render("index.html", ""))
	pages.GET("/login", middleware.Guard(false, "/summary"), pageHandler.Render("login.html", "ログイン"))
	pages.GET("/signup", middleware.Guard(false, "/summary"), pageHandler.Render("signup.html", "新規登録"))
	pages.GET("/summary", middleware.Guard(true, "/login"), pageHandler.Render("summary.html", "要約"))
	pages.GET("/summaries", middleware.Guard(true, "/login"), pageHandler.Render("summaries.html", "保存した要約"))
	pages.GET("/summary/:id", middleware.Guard(true, "/login"), pageHandler.Render("detail.html", "要約"))

	api := router.Group("/api")
	api.POST("/extract", summaryHandler.Extract)
	api.POST("/summarize", summaryHandler.Summarize)
	api.POST("/summarize_english", summaryHandler.SummarizeEnglish)
	api.POST("/translate", summaryHandler.Translate)

	api.POST("/save", session, libraryHandler.Save)
	api.GET("/summaries/:user_id", libraryHandler.List)
	api.GET("/summary/:id", libraryHandler.Get)
	api.DELETE("/summary/:id", libraryHandler.Delete)
	api.GET("/summary_english/:id", libraryHandler.English)

	api.GET("/diagnostics/env", healthHandler.Diagnostics)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.GET("/callback", authHandler.Callback)
	authGroup.GET("/oauth/:provider", authHandler.OAuth)
	authGroup.POST("/logout", session, authHandler.Logout)
	authGroup.GET("/session", session, authHandler.Session)

	return router, nil
}

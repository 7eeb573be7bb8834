package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "mathtutor/internal/app"
	"mathtutor/internal/bootstrap"
	"mathtutor/internal/repository"
	"mathtutor/internal/transport/http/handler"
	"mathtutor/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.StaticFile("/", "web/index.html")
	router.StaticFile("/login", "web/login.html")
	router.StaticFile("/register", "web/register.html")
	router.StaticFile("/admin", "web/admin.html")
	router.StaticFile("/game", "web/game.html")
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
		app.Config.Auth.AdminUsername,
	)
	tutorService := appsvc.NewTutorService(
		userRepo,
		app.Retriever,
		app.LLMClient,
		app.ChatConfig(),
		app.EvalPublisher,
		app.EvalGate,
	)
	adminService := appsvc.NewAdminService(userRepo)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(tutorService)
	adminHandler := handler.NewAdminHandler(authService, adminService, app.CorpusService, app.Config.MaxUploadBytes())

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Logout)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	v1.POST("/chat", middleware.AuthJWT(app.Config.Auth.JWTSecret), chatHandler.Chat)

	adminGroup := v1.Group("/admin")
	adminGroup.POST("/login", adminHandler.Login)
	protected := adminGroup.Group("")
	protected.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret), middleware.AdminOnly())
	protected.GET("/pdfs", adminHandler.ListPDFs)
	protected.POST("/pdfs", adminHandler.UploadPDF)
	protected.DELETE("/pdfs/:filename", adminHandler.DeletePDF)
	protected.GET("/students", adminHandler.ListStudents)
	protected.GET("/export", adminHandler.ExportCSV)

	return router
}

package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docexplorer/internal/bootstrap"
	"docexplorer/internal/privacy"
	"docexplorer/internal/transport/http/handler"
	"docexplorer/internal/transport/http/middleware"
)

// Handlers groups every route handler the router mounts.
type Handlers struct {
	Health     gin.HandlerFunc
	Auth       *handler.AuthHandler
	Explore    *handler.ExploreHandler
	Documents  *handler.DocumentHandler
	QA         *handler.QAHandler
	Notes      *handler.ResearchNoteHandler
	Validation *handler.ValidationHandler
	Search     *handler.SearchHandler
	Reports    *handler.ReportHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	svc := app.Services
	return Routes(Handlers{
		Health:     handler.NewHealthHandler(app).Check,
		Auth:       handler.NewAuthHandler(svc.Auth),
		Explore:    handler.NewExploreHandler(svc.Explorer, app.Logger.Named("explore")),
		Documents:  handler.NewDocumentHandler(svc.Summaries, svc.Reports),
		QA:         handler.NewQAHandler(svc.RAG),
		Notes:      handler.NewResearchNoteHandler(svc.Notes),
		Validation: handler.NewValidationHandler(svc.Validation),
		Search:     handler.NewSearchHandler(svc.Search),
		Reports:    handler.NewReportHandler(svc.Reports),
	}, app.Signer, app.Config.App.CORSOrigins, app.Logger)
}

// Routes builds the engine. Everything under /api/v1 except /auth needs a
// bearer token and passes the privacy filter.
func Routes(h Handlers, tokens middleware.TokenParser, corsOrigins []string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.Trace(),
		middleware.RequestLogger(logger),
		middleware.CORS(corsOrigins),
	)

	if h.Health != nil {
		router.GET("/healthz", h.Health)
	}
	router.GET("/explore_documents", h.Explore.ExploreDocuments)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/token", h.Auth.Token)
	authGroup.GET("/users/me", middleware.AuthJWT(tokens), h.Auth.Me)
	authGroup.GET("/me", middleware.AuthJWT(tokens), h.Auth.Me)

	protected := v1.Group("")
	protected.Use(middleware.AuthJWT(tokens), middleware.Privacy(privacy.NewFilter()))

	documents := protected.Group("/documents")
	documents.POST("/:document_id/summary", h.Documents.Summary)
	documents.POST("/:document_id/research-summary", h.Documents.ResearchSummary)
	documents.POST("/:document_id/multimodal-summary", h.Documents.MultimodalSummary)
	documents.GET("/:document_id/reports", h.Documents.ListReports)

	qa := protected.Group("/qa")
	qa.POST("/ask", h.QA.Ask)
	qa.POST("/ask/stream", h.QA.AskStream)
	qa.POST("/multimodal-query", h.QA.MultimodalQuery)

	notes := protected.Group("/research_notes")
	notes.POST("/notes/:document_id", h.Notes.Create)
	notes.GET("/notes/:document_id", h.Notes.List)
	notes.GET("/note/:id", h.Notes.Get)
	notes.PUT("/note/:id", h.Notes.Update)
	notes.DELETE("/note/:id", h.Notes.Delete)
	notes.POST("/search", h.Notes.Search)
	notes.GET("/trend/:document_id", h.Notes.Trend)

	validation := protected.Group("/validation")
	validation.GET("/pending", h.Validation.Pending)
	validation.GET("/validated", h.Validation.Validated)
	validation.POST("/:note_id/validate", h.Validation.Validate)

	search := protected.Group("/search")
	search.POST("/hybrid", h.Search.Hybrid)
	search.GET("/similar-notes/:note_id", h.Search.SimilarNotes)
	search.POST("/time-range", h.Search.TimeRange)

	reports := protected.Group("/reports")
	reports.POST("/generate/:document_id", h.Reports.Generate)
	reports.GET("/:id", h.Reports.Get)

	return router
}

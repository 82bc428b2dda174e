// routes.go - Route registration helpers
package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slidewizard/backend/internal/events"
	"github.com/slidewizard/backend/internal/jobs"
	"github.com/slidewizard/backend/internal/models"
	"github.com/slidewizard/backend/internal/session"
	"github.com/slidewizard/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions *session.Manager
	Store    storage.Store
	Jobs     *jobs.Manager
	Hub      *events.Hub
	// History may be nil when run history is disabled.
	History RunHistory
	// Caches hands out each client's settings cache behind the "use previous settings" affordance.
	Caches session.CacheProvider
	// Defaults apply to process requests that omit imageOrder or skipEmptyFolders.
	Defaults models.GenerateOptions
	// MaxUpload caps a batch upload in bytes; 0 means no cap.
	MaxUpload int64
	Version   string
	Now       func() time.Time
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Session   SessionHandler
	Configure ConfigureHandler
	Process   ProcessHandler
	Upload    UploadHandler
	Settings  SettingsHandler
	Slideshow SlideshowHandler
	Events    EventsHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Defaults.ImageOrder == "" {
		deps.Defaults = models.DefaultGenerateOptions()
	}
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Sessions),
		Session:   NewSessionHandler(deps.Sessions, deps.Store),
		Configure: NewConfigureHandler(deps.Sessions),
		Process:   NewProcessHandler(deps.Sessions, deps.Store, deps.Jobs, deps.History, deps.Defaults, deps.MaxUpload),
		Upload:    NewUploadHandler(deps.Store, deps.Jobs),
		Settings:  NewSettingsHandler(deps.Sessions, deps.Caches, deps.Now),
		Slideshow: NewSlideshowHandler(deps.Sessions),
		Events:    NewEventsHandler(deps.Sessions, deps.Hub),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Session lifecycle and navigation
	e.POST("/api/sessions", handlers.Session.HandleCreateSession)
	s := e.Group("/api/sessions/:id")
	s.GET("", handlers.Session.HandleGetSession)
	s.DELETE("", handlers.Session.HandleDeleteSession)
	s.POST("/template", handlers.Session.HandleUploadTemplate)
	s.POST("/step", handlers.Session.HandleSetStep)
	s.POST("/confirm", handlers.Session.HandleConfirm)
	s.POST("/previous-settings", handlers.Session.HandleUsePreviousSettings)
	s.POST("/restart", handlers.Session.HandleRestart)

	// Configure surfaces
	s.GET("/canvas", handlers.Configure.HandleGetCanvas)
	s.GET("/panel", handlers.Configure.HandleGetPanel)
	s.GET("/modal", handlers.Configure.HandleGetModal)
	s.POST("/select", handlers.Configure.HandleSelect)
	s.POST("/modal/edit", handlers.Configure.HandleEditModal)
	s.POST("/modal/close", handlers.Configure.HandleCloseModal)
	s.POST("/panel/:placeholderId/edit", handlers.Configure.HandleEditPanel)
	s.GET("/summary", handlers.Configure.HandleGetSummary)
	s.GET("/config", handlers.Configure.HandleGetConfig)
	s.GET("/config/msgpack", handlers.Configure.HandleGetConfigMsgpack)

	// Processing and results
	s.POST("/process", handlers.Process.HandleProcess)
	s.GET("/results", handlers.Process.HandleGetResults)
	s.GET("/results/download", handlers.Process.HandleDownloadResult)
	e.GET("/api/jobs/:jobId", handlers.Process.HandleGetJob)
	e.GET("/api/runs", handlers.Process.HandleGetRuns)

	// Chunked batch uploads
	e.POST("/api/uploads/chunk", handlers.Upload.HandleUploadChunk)
	e.POST("/api/uploads/complete", handlers.Upload.HandleCompleteUpload)

	// Slideshow
	s.GET("/slideshow", handlers.Slideshow.HandleGetSlideshow)
	s.POST("/slideshow/next", handlers.Slideshow.HandleSlideshowNext)
	s.POST("/slideshow/previous", handlers.Slideshow.HandleSlideshowPrevious)
	s.POST("/slideshow/fullscreen", handlers.Slideshow.HandleSlideshowFullscreen)
	s.POST("/slideshow/exit-fullscreen", handlers.Slideshow.HandleSlideshowExitFullscreen)

	// Settings
	s.GET("/settings/export", handlers.Settings.HandleExportSettings)
	s.POST("/settings/import", handlers.Settings.HandleImportSettings)
	e.GET("/api/settings/cached", handlers.Settings.HandleCachedSettings)

	// Events
	s.GET("/events", handlers.Events.HandleEvents)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}

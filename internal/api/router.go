package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceattend/internal/api/handlers"
	"github.com/your-org/faceattend/internal/api/ws"
	"github.com/your-org/faceattend/internal/auth"
	"github.com/your-org/faceattend/internal/service"
)

type RouterConfig struct {
	// AdminKey guards every /api route; KioskKey additionally opens the
	// kiosk routes. Empty keys disable the check.
	AdminKey string
	KioskKey string
	Service  *service.Service
	Hub      *ws.Hub
	// MaxBodyBytes caps /api request bodies; zero disables the cap.
	MaxBodyBytes int64
	// Checks back /readyz.
	Checks map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-API-Key", requestIDHeader},
		ExposeHeaders:   []string{requestIDHeader},
	}))

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", BodyLimit(cfg.MaxBodyBytes))
	api.GET("/", systemH.Root)

	admin := auth.RequireKey(cfg.AdminKey)
	kiosk := auth.RequireKey(cfg.AdminKey, cfg.KioskKey)

	// Employees
	empH := handlers.NewEmployeeHandler(cfg.Service)
	employees := api.Group("/employees", admin)
	employees.POST("", empH.Register)
	employees.GET("", empH.List)
	employees.GET("/:id", empH.Get)
	employees.PUT("/:id/face", empH.ReplaceFace)
	employees.GET("/:id/photo", empH.Photo)

	// Attendance
	attH := handlers.NewAttendanceHandler(cfg.Service)
	api.POST("/attendance/recognize", kiosk, attH.Recognize)
	api.GET("/attendance/last/:id", kiosk, attH.Last)
	api.POST("/attendance", admin, attH.Punch)
	api.GET("/attendance/employee/:id", admin, attH.History)

	// WebSocket
	api.GET("/ws", kiosk, cfg.Hub.HandleWS)

	return r
}

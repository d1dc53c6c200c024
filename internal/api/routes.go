package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/config"
	"github.com/mehrbod2002/masjidmap/internal/middleware"
	"github.com/mehrbod2002/masjidmap/internal/models"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"github.com/mehrbod2002/masjidmap/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Accounts  service.AccountService
	Places    service.PlaceService
	Proximity service.ProximityService
	Gate      service.GateService
	Requests  service.ChangeRequestService
	Logs      service.LogService
}

func SetupRoutes(r *gin.Engine, cfg *config.Config, svc Services, wsHandler *ws.WebSocketHandler, gatherer prometheus.Gatherer, logger logrus.FieldLogger) error {
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSOrigins),
	}))

	authLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		return err
	}
	submitLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		return err
	}

	authHandler := NewAuthHandler(svc.Accounts, cfg.JWTSecret, cfg.JWTTTL)
	placeHandler := NewPlaceHandler(svc.Places, svc.Proximity, svc.Gate, svc.Requests, cfg.NearbyDefaultRadius, cfg.NearbyMaxRadius)
	requestHandler := NewRequestHandler(svc.Requests, svc.Gate)
	logHandler := NewLogHandler(svc.Logs)
	overviewHandler := NewOverviewHandler(svc.Accounts, svc.Places, svc.Requests)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))
	r.GET("/docs/swagger.json", func(c *gin.Context) {
		c.File(cfg.SwaggerFile)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := middleware.AuthMiddleware(svc.Accounts, cfg.JWTSecret)
	mainAdmin := middleware.RequireRole(models.RoleMainAdmin)

	v1 := r.Group("/api")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", authLimit, authHandler.Register)
			auth.POST("/login", authLimit, authHandler.Login)
			auth.GET("/me", authed, authHandler.Me)
			auth.GET("/users", authed, mainAdmin, authHandler.GetAllUsers)
			auth.PUT("/users/:id/role", authed, mainAdmin, authHandler.SetRole)
		}

		masjids := v1.Group("/masjids")
		{
			masjids.GET("", placeHandler.GetAllPlaces)
			masjids.GET("/nearby", placeHandler.GetNearbyPlaces)
			masjids.GET("/:id", placeHandler.GetPlace)
			masjids.POST("", authed, placeHandler.CreatePlace)
			masjids.PUT("/:id", authed, placeHandler.UpdatePlace)
			masjids.DELETE("/:id", authed, placeHandler.DeletePlace)
		}

		requests := v1.Group("/requests").Use(authed)
		{
			requests.POST("", submitLimit, requestHandler.SubmitRequest)
			requests.GET("", mainAdmin, requestHandler.GetRequests)
			requests.GET("/my-requests", requestHandler.GetMyRequests)
			requests.PUT("/:id/process", mainAdmin, requestHandler.ProcessRequest)
			requests.PUT("/:id/resolve", mainAdmin, requestHandler.ProcessRequest)
			requests.DELETE("/:id", requestHandler.WithdrawRequest)
		}

		admin := v1.Group("/admin").Use(authed, mainAdmin)
		{
			admin.GET("/overview", overviewHandler.GetOverview)
			admin.GET("/logs", logHandler.GetAllLogs)
			admin.GET("/logs/user/:user_id", logHandler.GetLogsByUser)
		}
	}

	r.GET("/ws", wsHandler.HandleConnection)
	return nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

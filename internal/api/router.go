package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erpdesk/printflow/internal/api/handlers"
	"github.com/erpdesk/printflow/internal/api/middleware"
	"github.com/erpdesk/printflow/internal/config"
	"github.com/erpdesk/printflow/internal/fleet"
	"github.com/erpdesk/printflow/internal/history"
	"github.com/erpdesk/printflow/internal/orchestrate"
)

// NewRouter wires the HTTP surface: session lifecycle, fleet reads, session
// history, auth, health and metrics.
func NewRouter(orchestrator *orchestrate.Orchestrator, client *fleet.Client, store *history.Store, authCfg config.AuthConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	auth := middleware.NewAuthMiddleware(authCfg)
	printHandler := handlers.NewPrintHandler(orchestrator)
	fleetHandler := handlers.NewFleetHandler(client)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/api/v1/auth/login", auth.LoginHandler)
	router.POST("/api/v1/auth/logout", auth.LogoutHandler)
	router.GET("/api/v1/auth/status", auth.StatusHandler)

	v1 := router.Group("/api/v1", auth.RequireAuth())
	{
		v1.POST("/print", printHandler.StartPrint)
		v1.GET("/print/:id", printHandler.GetSession)
		v1.POST("/print/:id/printer", printHandler.ConfirmPrinter)
		v1.POST("/print/:id/retry", printHandler.RetryPrint)
		v1.DELETE("/print/:id", printHandler.CancelPrint)
		v1.GET("/print/:id/fallback", printHandler.FallbackLink)

		v1.GET("/agents", fleetHandler.ListAgents)
		v1.GET("/printers", fleetHandler.ListPrinters)

		if store != nil {
			v1.GET("/history", handlers.NewHistoryHandler(store).ListSessions)
		}
	}

	return router
}

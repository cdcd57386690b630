// Package routes wires the API handlers into a router.
package routes

import (
	"net/http"

	"github.com/ReconfigureIO/hlsflow/handlers/api"
	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up api routes.
func SetupRoutes(r gin.IRouter, run api.Run) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "hlsflow")
	})

	runRoute := r.Group("/runs")
	{
		runRoute.GET("", run.List)
		runRoute.GET("/:id", run.Get)
		runRoute.GET("/:id/report", run.Report)
		runRoute.GET("/:id/report.rpt", run.RawReport)
	}

	// Stage callbacks authenticate with the run token.
	r.POST("/events", run.CreateEvent)
}

package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/distcgp/distcgp/internal/telemetry"
)

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status string `json:"status"`
}

// opsRouter builds the ops-only HTTP surface this process exposes:
// liveness and a Prometheus scrape target. This is deliberately the only
// HTTP surface distcgp has — no live evolution feed, per spec.md's
// real-time-monitoring non-goal.
func opsRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	})

	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	return router
}

// runServeOps starts a standalone ops server, for operating distcgp's
// health/metrics surface independently of a run (e.g. to smoke-test a
// scrape config before launching the real processes).
func runServeOps(cmd *cobra.Command, args []string) error {
	telCfg := telemetry.DefaultConfig()
	telCfg.TraceExporter = "none"
	telCfg.MetricExporter = "prometheus"
	shutdown, err := telemetry.Init(context.Background(), telCfg)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	return opsRouter().Run(opsListen)
}

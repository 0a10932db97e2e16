package web

import (
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine) {
	// 首先处理根路径，返回 index.html（必须在其他路由之前）
	r.GET("/", func(c *gin.Context) {
		index, err := staticFiles.ReadFile("dist/index.html")
		if err != nil {
			c.String(http.StatusNotFound, "Frontend not found. Please rebuild the project.")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})

	// Prometheus metrics 端点（供 Prometheus 抓取）
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof 性能分析端点（调试用，生产环境建议通过防火墙限制访问）
	pprofGroup := r.Group("/debug/pprof")
	{
		pprofGroup.GET("/", gin.WrapF(pprof.Index))
		pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
		pprofGroup.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))
		pprofGroup.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
		pprofGroup.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofGroup.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	// API 路由
	api := r.Group("/api")
	{
		api.GET("/version", getVersion)
		api.GET("/status", getStatus)

		// 行情 API
		api.GET("/prices", getPrices)
		api.GET("/klines", getKlines)
		api.GET("/market/summary", getMarketSummary)

		// AI API
		api.GET("/ai/credentials", getAICredentials)
		api.POST("/ai/credentials", setAICredentials)
		api.POST("/ai/recommendation", postAIRecommendation)
		api.GET("/ai/analysis", getAIAnalysis)

		// 模拟交易 API
		api.GET("/portfolio", getPortfolio)
		api.POST("/portfolio/reset", postPortfolioReset)
		api.POST("/trade", postTrade)
		api.GET("/trades", getTrades)
	}

	// SPA 路由回退（所有未匹配的路由返回 index.html）
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/metrics") || strings.HasPrefix(path, "/debug") {
			c.Status(http.StatusNotFound)
			return
		}

		index, err := staticFiles.ReadFile("dist/index.html")
		if err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
}

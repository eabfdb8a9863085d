package restapi

import (
	"net/http/pprof"

	"wallet_indexer/internal/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// RouterOptions toggles the optional debug surfaces.
type RouterOptions struct {
	SwaggerSpec string // OpenAPI file served at /docs/swagger.yaml, empty disables /swagger
	EnablePprof bool
}

// SetupRouter builds the gin engine serving the API and /metrics.
func SetupRouter(h *Handler, gatherer prometheus.Gatherer, opts RouterOptions, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(logger.GinMiddleware(log.Named("http")))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.PUT("/wallets", h.PutWallet)
		v1.GET("/wallets", h.ListWallets)
		v1.GET("/wallets/:id", h.GetWallet)
		v1.DELETE("/wallets/:id", h.DeleteWallet)
		v1.POST("/wallets/:id/sync", h.SyncWallet)
		v1.GET("/wallets/:id/sync-stats", h.GetWalletSyncStats)

		v1.GET("/balances/:address", h.GetBalance)
		v1.POST("/portfolio/value", h.GetPortfolioValue)

		v1.GET("/sync-stats", h.GetSyncStats)
		v1.GET("/health", h.Health)
		v1.GET("/cache/stats", h.CacheStats)
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if opts.SwaggerSpec != "" {
		router.StaticFile("/docs/swagger.yaml", opts.SwaggerSpec)
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.yaml")))
	}
	if opts.EnablePprof {
		registerPprof(router)
		log.Info("Pprof endpoints enabled under /debug/pprof")
	}
	return router
}

func registerPprof(router *gin.Engine) {
	g := router.Group("/debug/pprof")
	g.GET("/", gin.WrapF(pprof.Index))
	g.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	g.GET("/profile", gin.WrapF(pprof.Profile))
	g.GET("/symbol", gin.WrapF(pprof.Symbol))
	g.POST("/symbol", gin.WrapF(pprof.Symbol))
	g.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		g.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}

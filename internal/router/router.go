package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"vipsmoke_erp/internal/controller"
	"vipsmoke_erp/internal/metrics"
	"vipsmoke_erp/internal/middleware"
	"vipsmoke_erp/internal/model"

	_ "vipsmoke_erp/docs"
)

// Controllers 路由依赖的控制器集合
type Controllers struct {
	Sync       *controller.SyncController
	Product    *controller.ProductController
	Compliance *controller.ComplianceController
	Webhook    *controller.WebhookController
	Health     *controller.HealthController
}

// Options 路由选项
type Options struct {
	CORSOrigins []string
	// SyncCooldown 手动同步的冷却时间，<=0 时不限制
	SyncCooldown time.Duration
	// UploadsDir 本地存储目录，非空时挂载 /uploads 静态文件
	UploadsDir string
}

// New 创建带全局中间件的 gin 引擎并注册路由
func New(opts Options, ctls Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), cors.New(corsConfig(opts.CORSOrigins)))
	InitRoutes(r, opts, ctls)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, opts Options, ctls Controllers) {
	// 1. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 2. Prometheus 指标
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if opts.UploadsDir != "" {
		r.Static("/uploads", opts.UploadsDir)
	}

	// 3. API 路由组
	api := r.Group("/api")
	{
		// GET /api/health
		api.GET("/health", ctls.Health.Health)

		// POST /api/webhook (Zoho 推送)
		api.POST("/webhook", ctls.Webhook.Receive)

		// sync 手动同步，每类资源独立冷却
		limiter := middleware.NewSyncRateLimiter()
		cooldown := func(resource string) gin.HandlerFunc {
			return middleware.SyncCooldown(limiter, resource, opts.SyncCooldown)
		}
		sync := api.Group("/sync")
		{
			sync.POST("/products", cooldown(model.ResourceProducts), ctls.Sync.SyncProducts)
			sync.POST("/categories", cooldown(model.ResourceCategories), ctls.Sync.SyncCategories)
			sync.POST("/inventory", cooldown(model.ResourceInventory), ctls.Sync.SyncInventory)
			sync.POST("/orders", cooldown(model.ResourceOrders), ctls.Sync.SyncOrders)
			sync.POST("/full", cooldown("full"), ctls.Sync.SyncFull)
			sync.POST("/airtable", cooldown(model.ResourceAirtable), ctls.Sync.SyncAirtable)
			sync.POST("/shipments", cooldown(model.ResourceShipments), ctls.Sync.SyncShipments)
		}

		// product 组
		products := api.Group("/products")
		{
			products.GET("", ctls.Product.GetProducts)
			products.GET("/:id", ctls.Product.GetProduct)
			products.GET("/:id/recommendations", ctls.Product.GetRecommendations)
			products.POST("/:id/classify", ctls.Product.Classify)
		}

		// 合规
		api.POST("/classify/batch", ctls.Compliance.ClassifyBatch)
		api.POST("/coa/validate", ctls.Compliance.ValidateCOA)
	}
}

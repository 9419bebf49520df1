package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vipsmoke_erp/internal/config"
	"vipsmoke_erp/internal/controller"
	"vipsmoke_erp/internal/model"
	"vipsmoke_erp/internal/repository"
	"vipsmoke_erp/internal/router"
	"vipsmoke_erp/internal/service"
	"vipsmoke_erp/internal/task"
	"vipsmoke_erp/pkg/database"
	"vipsmoke_erp/pkg/lock"
	"vipsmoke_erp/pkg/vendors/airtable"
	"vipsmoke_erp/pkg/vendors/shipstation"
	"vipsmoke_erp/pkg/vendors/zoho"
)

// ==================== 依赖容器 ====================

// App 进程内依赖
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Locker   lock.Locker
	Zoho     *zoho.Client
	AI       *service.AIService
	Storage  *service.StorageService
	Repos    *Repositories
	Services *Services
}

// Repositories 仓库集合
type Repositories struct {
	Product        repository.ProductRepository
	Category       repository.CategoryRepository
	Brand          repository.BrandRepository
	Order          repository.OrderRepository
	SyncRun        repository.SyncRunRepository
	Token          repository.TokenRepository
	Classification repository.ClassificationRepository
	Embedding      repository.EmbeddingRepository
	AiCallLog      repository.AICallLogRepository
}

// Services 服务集合
// Airtable / Shipping 未配置时为 nil
type Services struct {
	Sync       *service.SyncService
	Airtable   *service.AirtableSyncService
	Shipping   *service.ShippingService
	Compliance *service.ComplianceService
	COA        *service.COAService
	Recommend  *service.RecommendService
	Webhook    *service.WebhookService
	Health     *service.HealthService
	Token      *service.TokenService
}

// ==================== 初始化函数 ====================

// newApp 按配置装配全部依赖
func newApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	// 1. 数据库
	db, err := database.InitDB(cfg.Database.URL, database.DefaultOptions(), model.AllModels()...)
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.Repos = initRepositories(db)

	// 2. 锁：配置了 Redis 时使用分布式锁
	if cfg.Redis.Addr != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			app.Close()
			return nil, fmt.Errorf("Redis 连接失败: %w", err)
		}
		logrus.Info("[App] 使用 Redis 分布式锁")
	}
	app.Locker = lock.New(app.Redis)

	// 3. 供应商客户端
	app.Zoho = zoho.NewClient(zoho.Config{
		ClientID:       cfg.Zoho.ClientID,
		ClientSecret:   cfg.Zoho.ClientSecret,
		RefreshToken:   cfg.Zoho.RefreshToken,
		OrganizationID: cfg.Zoho.OrganizationID,
		AccountsURL:    cfg.Zoho.AccountsURL,
		APIBaseURL:     cfg.Zoho.APIBaseURL,
		RateLimit:      cfg.Zoho.RateLimit,
	}, service.NewDBTokenStore(app.Repos.Token))

	// 4. 存储 & AI
	app.Storage, err = service.NewStorageService(service.StorageConfig{
		Provider:  cfg.Storage.Provider,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Endpoint:  cfg.Storage.Endpoint,
		BaseURL:   cfg.Storage.BaseURL,
		LocalDir:  cfg.Storage.LocalDir,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("存储服务初始化失败: %w", err)
	}
	app.AI, err = service.NewAIService(ctx, service.AIConfig{
		APIKey:         cfg.AI.GeminiAPIKey,
		TextModel:      cfg.AI.TextModel,
		EmbeddingModel: cfg.AI.EmbeddingModel,
	}, app.Repos.AiCallLog)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Services = initServices(app)
	return app, nil
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Product:        repository.NewProductRepository(db),
		Category:       repository.NewCategoryRepository(db),
		Brand:          repository.NewBrandRepository(db),
		Order:          repository.NewOrderRepository(db),
		SyncRun:        repository.NewSyncRunRepository(db),
		Token:          repository.NewTokenRepository(db),
		Classification: repository.NewClassificationRepository(db),
		Embedding:      repository.NewEmbeddingRepository(db),
		AiCallLog:      repository.NewAICallLogRepository(db),
	}
}

// initServices 初始化业务服务
func initServices(app *App) *Services {
	cfg := app.Config
	repos := app.Repos

	mapper := service.NewFieldMapper(nil, nil)
	resolver := service.NewReferenceResolver(repos.Category, repos.Brand)

	svc := &Services{
		Sync: service.NewSyncService(
			app.Zoho, repos.Product, repos.Category, repos.Order, repos.SyncRun,
			mapper, resolver, app.Locker,
			service.SyncConfig{
				PageSize:  cfg.Sync.PageSize,
				PageLimit: cfg.Sync.PageLimit,
				PageDelay: cfg.Sync.PageDelay,
				LockTTL:   cfg.Sync.LockTTL,
			},
		),
		Compliance: service.NewComplianceService(app.AI, nil, repos.Product, repos.Classification),
		COA:        service.NewCOAService(app.AI),
		Recommend:  service.NewRecommendService(app.AI, repos.Product, repos.Embedding),
		Token:      service.NewTokenService(app.Zoho, 0),
	}
	svc.Webhook = service.NewWebhookService(svc.Sync, cfg.Webhook.Secret)

	if cfg.Airtable.Enabled() {
		client := airtable.NewClient(airtable.Config{
			APIKey:  cfg.Airtable.APIKey,
			BaseID:  cfg.Airtable.BaseID,
			Table:   cfg.Airtable.Table,
			BaseURL: cfg.Airtable.BaseURL,
		})
		// 独立的解析器实例，避免与 Zoho 同步共享缓存时相互 Reset
		svc.Airtable = service.NewAirtableSyncService(
			client, repos.Product, repos.SyncRun, mapper,
			service.NewReferenceResolver(repos.Category, repos.Brand),
			app.Storage, app.Locker, "", 0, cfg.Sync.LockTTL,
		)
	}

	var shipClient *shipstation.Client
	if cfg.ShipStation.Enabled() {
		shipClient = shipstation.NewClient(shipstation.Config{
			APIKey:    cfg.ShipStation.APIKey,
			APISecret: cfg.ShipStation.APISecret,
			BaseURL:   cfg.ShipStation.BaseURL,
			StoreID:   cfg.ShipStation.StoreID,
		})
		svc.Shipping = service.NewShippingService(shipClient, repos.Order, repos.SyncRun, app.Locker, service.ShippingConfig{
			StoreID: cfg.ShipStation.StoreID,
			LockTTL: cfg.Sync.LockTTL,
		})
	}

	// 健康检查：数据库与 Zoho 为关键依赖
	svc.Health = service.NewHealthService(repos.SyncRun, cfg.Sync.HealthStaleAfter)
	svc.Health.AddCheck("database", service.DBPinger(app.DB), true)
	svc.Health.AddCheck("zoho", app.Zoho, true)
	if app.Redis != nil {
		svc.Health.AddCheck("redis", service.PingFunc(func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}), false)
	}
	if shipClient != nil {
		svc.Health.AddCheck("shipstation", shipClient, false)
	}

	return svc
}

// ==================== HTTP / 任务装配 ====================

// controllers 可选服务为 nil 时不能直接赋给接口，否则接口非 nil
func (a *App) controllers() router.Controllers {
	var (
		airtableSyncer controller.AirtableSyncer
		shipmentSyncer controller.ShipmentSyncer
	)
	if a.Services.Airtable != nil {
		airtableSyncer = a.Services.Airtable
	}
	if a.Services.Shipping != nil {
		shipmentSyncer = a.Services.Shipping
	}

	return router.Controllers{
		Sync:       controller.NewSyncController(a.Services.Sync, airtableSyncer, shipmentSyncer),
		Product:    controller.NewProductController(a.Repos.Product, a.Services.Recommend, a.Services.Compliance),
		Compliance: controller.NewComplianceController(a.Services.Compliance, a.Services.COA),
		Webhook:    controller.NewWebhookController(a.Services.Webhook),
		Health:     controller.NewHealthController(a.Services.Health),
	}
}

// taskManager 组装后台任务
func (a *App) taskManager() *task.TaskManager {
	deps := task.TaskManagerDeps{
		Token: task.NewTokenTask(a.Services.Token, a.Config.Sync.TokenCron),
		Retention: task.NewRetentionTask(map[string]task.Pruner{
			"sync_runs":    a.Repos.SyncRun,
			"ai_call_logs": a.Repos.AiCallLog,
		}, a.Config.Sync.Retention, a.Config.Sync.RetentionCron),
	}
	if a.Config.Sync.CronEnabled {
		var (
			shipping task.ShipmentSyncer
			air      task.AirtableSyncer
		)
		if a.Services.Shipping != nil {
			shipping = a.Services.Shipping
		}
		if a.Services.Airtable != nil {
			air = a.Services.Airtable
		}
		deps.Sync = task.NewSyncTask(a.Services.Sync, shipping, air, a.Config.Sync.IncrementalCron, a.Config.Sync.FullCron)
	}
	return task.NewTaskManager(deps)
}

// Close 释放连接
func (a *App) Close() {
	if a.AI != nil {
		if err := a.AI.Close(); err != nil {
			logrus.WithError(err).Warn("[App] 关闭 Gemini 客户端失败")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	database.Close(a.DB)
}

// shutdownTimeout 优雅关闭等待时间
const shutdownTimeout = 30 * time.Second

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vipsmoke_erp/internal/api/dto"
	"vipsmoke_erp/internal/config"
	"vipsmoke_erp/internal/router"
	"vipsmoke_erp/internal/service"
	"vipsmoke_erp/pkg/logger"
)

// @title VIP Smoke ERP API
// @version 1.0
// @description Zoho 商品/订单同步、Airtable 对账、ShipStation 履约与合规分类
// @BasePath /

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// ==================== 命令定义 ====================

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "vipsmoke",
		Short:        "VIP Smoke 商品与订单同步服务",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "环境变量文件")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		logger.Init(cfg.Log.Level, cfg.Log.Format)
		return cfg, nil
	}

	root.AddCommand(newServeCmd(load), newSyncCmd(load), newClassifyCmd(load))
	return root
}

type configLoader func() (*config.Config, error)

// newServeCmd HTTP 服务 + 后台任务
func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// newSyncCmd 脚本模式：执行一次同步并输出 JSON 结果
func newSyncCmd(load configLoader) *cobra.Command {
	var (
		full  bool
		since string
	)
	cmd := &cobra.Command{
		Use:       "sync <products|categories|orders|inventory|full|airtable|shipments>",
		Short:     "执行一次同步",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"products", "categories", "orders", "inventory", "full", "airtable", "shipments"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceAt, err := dto.ParseDate(since)
			if err != nil {
				return fmt.Errorf("无效的 --since: %w", err)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := runSync(cmd.Context(), app, args[0], full, sinceAt)
			if result != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(result)
			}
			if err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "商品全量同步")
	cmd.Flags().StringVar(&since, "since", "", "增量起点 (RFC3339 或 2006-01-02)")
	return cmd
}

// newClassifyCmd 批量合规分类
func newClassifyCmd(load configLoader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "对未分类商品执行合规分类",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Services.Compliance.ClassifyBatch(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "本次最多分类数量")
	return cmd
}

// runSync 按资源名分发到对应同步
func runSync(ctx context.Context, app *App, resource string, full bool, since *time.Time) (*service.SyncResult, error) {
	svc := app.Services
	switch resource {
	case "products":
		return svc.Sync.SyncProducts(ctx, service.SyncOptions{FullSync: full, Since: since})
	case "categories":
		return svc.Sync.SyncCategories(ctx)
	case "inventory":
		return svc.Sync.SyncInventory(ctx)
	case "orders":
		return svc.Sync.SyncOrders(ctx, service.OrderSyncOptions{StartDate: since})
	case "full":
		return svc.Sync.SyncFull(ctx)
	case "airtable":
		if svc.Airtable == nil {
			return nil, errors.New("Airtable 未配置")
		}
		return svc.Airtable.SyncImagesAndBrands(ctx)
	case "shipments":
		if svc.Shipping == nil {
			return nil, errors.New("ShipStation 未配置")
		}
		return svc.Shipping.SyncShipments(ctx, since)
	default:
		return nil, fmt.Errorf("未知资源: %s", resource)
	}
}

// ==================== 服务启动 ====================

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// 启动时预热 token，失败不阻塞启动，由保活任务重试
	if err := app.Services.Token.KeepAlive(ctx); err != nil {
		logrus.WithError(err).Warn("[App] Zoho 令牌预热失败")
	}

	tasks := app.taskManager()
	if err := tasks.Start(); err != nil {
		return err
	}
	defer tasks.Stop()

	gin.SetMode(cfg.Server.Mode)
	uploadsDir := ""
	if cfg.Storage.Provider == "" || cfg.Storage.Provider == "local" {
		uploadsDir = cfg.Storage.LocalDir
	}
	engine := router.New(router.Options{
		CORSOrigins:  cfg.Server.CORSOrigins,
		SyncCooldown: cfg.Sync.ManualCooldown,
		UploadsDir:   uploadsDir,
	}, app.controllers())

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("[App] 服务启动于 :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务启动失败: %w", err)
		}
	case <-ctx.Done():
	}

	logrus.Info("[App] 正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}
	logrus.Info("[App] 服务已退出")
	return nil
}

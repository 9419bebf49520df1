package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 进程级配置，启动时加载一次
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Zoho        ZohoConfig
	Airtable    AirtableConfig
	ShipStation ShipStationConfig
	AI          AIConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Sync        SyncConfig
	Webhook     WebhookConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port        string
	Mode        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	URL string
}

type ZohoConfig struct {
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	OrganizationID string
	AccountsURL    string
	APIBaseURL     string
	RateLimit      float64
}

type AirtableConfig struct {
	APIKey  string
	BaseID  string
	Table   string
	BaseURL string
}

// Enabled 是否配置了 Airtable
func (c AirtableConfig) Enabled() bool {
	return c.APIKey != "" && c.BaseID != "" && c.Table != ""
}

type ShipStationConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	StoreID   int
}

func (c ShipStationConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

type AIConfig struct {
	GeminiAPIKey   string
	TextModel      string
	VisionModel    string
	EmbeddingModel string
}

type StorageConfig struct {
	Provider  string // s3 / local
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	BaseURL   string
	LocalDir  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SyncConfig struct {
	PageLimit        int
	PageSize         int
	PageDelay        time.Duration
	CronEnabled      bool
	IncrementalCron  string
	FullCron         string
	TokenCron        string
	LockTTL          time.Duration
	ManualCooldown   time.Duration
	HealthStaleAfter time.Duration
	RetentionCron    string
	Retention        time.Duration
}

type WebhookConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

// ==================== 加载 ====================

// requiredKeys 启动必需的环境变量
var requiredKeys = []string{
	"ZOHO_CLIENT_ID",
	"ZOHO_CLIENT_SECRET",
	"ZOHO_REFRESH_TOKEN",
	"ZOHO_ORGANIZATION_ID",
	"DATABASE_URL",
	"GEMINI_API_KEY",
}

// Load 加载配置
// 先读取可选的 .env 文件，再由环境变量覆盖
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// .env 不存在时忽略
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("SERVER_PORT"),
			Mode:        v.GetString("GIN_MODE"),
			CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		Zoho: ZohoConfig{
			ClientID:       v.GetString("ZOHO_CLIENT_ID"),
			ClientSecret:   v.GetString("ZOHO_CLIENT_SECRET"),
			RefreshToken:   v.GetString("ZOHO_REFRESH_TOKEN"),
			OrganizationID: v.GetString("ZOHO_ORGANIZATION_ID"),
			AccountsURL:    v.GetString("ZOHO_ACCOUNTS_URL"),
			APIBaseURL:     v.GetString("ZOHO_API_BASE_URL"),
			RateLimit:      v.GetFloat64("ZOHO_RATE_LIMIT"),
		},
		Airtable: AirtableConfig{
			APIKey:  v.GetString("AIRTABLE_API_KEY"),
			BaseID:  v.GetString("AIRTABLE_BASE_ID"),
			Table:   v.GetString("AIRTABLE_TABLE"),
			BaseURL: v.GetString("AIRTABLE_BASE_URL"),
		},
		ShipStation: ShipStationConfig{
			APIKey:    v.GetString("SHIPSTATION_API_KEY"),
			APISecret: v.GetString("SHIPSTATION_API_SECRET"),
			BaseURL:   v.GetString("SHIPSTATION_BASE_URL"),
			StoreID:   v.GetInt("SHIPSTATION_STORE_ID"),
		},
		AI: AIConfig{
			GeminiAPIKey:   v.GetString("GEMINI_API_KEY"),
			TextModel:      v.GetString("GEMINI_TEXT_MODEL"),
			VisionModel:    v.GetString("GEMINI_VISION_MODEL"),
			EmbeddingModel: v.GetString("GEMINI_EMBEDDING_MODEL"),
		},
		Storage: StorageConfig{
			Provider:  v.GetString("STORAGE_PROVIDER"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			BaseURL:   v.GetString("STORAGE_BASE_URL"),
			LocalDir:  v.GetString("STORAGE_LOCAL_DIR"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Sync: SyncConfig{
			PageLimit:        v.GetInt("SYNC_PAGE_LIMIT"),
			PageSize:         v.GetInt("SYNC_PAGE_SIZE"),
			PageDelay:        v.GetDuration("SYNC_PAGE_DELAY"),
			CronEnabled:      v.GetBool("SYNC_CRON_ENABLED"),
			IncrementalCron:  v.GetString("SYNC_INCREMENTAL_CRON"),
			FullCron:         v.GetString("SYNC_FULL_CRON"),
			TokenCron:        v.GetString("ZOHO_TOKEN_CRON"),
			LockTTL:          v.GetDuration("SYNC_LOCK_TTL"),
			ManualCooldown:   v.GetDuration("SYNC_MANUAL_COOLDOWN"),
			HealthStaleAfter: v.GetDuration("HEALTH_STALE_AFTER"),
			RetentionCron:    v.GetString("RETENTION_CRON"),
			Retention:        v.GetDuration("RETENTION_PERIOD"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("ZOHO_ACCOUNTS_URL", "https://accounts.zoho.com")
	v.SetDefault("ZOHO_API_BASE_URL", "https://www.zohoapis.com/inventory/v1")
	v.SetDefault("ZOHO_RATE_LIMIT", 2.0)

	v.SetDefault("AIRTABLE_BASE_URL", "https://api.airtable.com/v0")
	v.SetDefault("SHIPSTATION_BASE_URL", "https://ssapi.shipstation.com")

	v.SetDefault("GEMINI_TEXT_MODEL", "gemini-2.0-flash")
	v.SetDefault("GEMINI_VISION_MODEL", "gemini-2.0-flash")
	v.SetDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004")

	v.SetDefault("STORAGE_PROVIDER", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_BASE_URL", "/uploads")

	v.SetDefault("SYNC_PAGE_LIMIT", 100)
	v.SetDefault("SYNC_PAGE_SIZE", 200)
	v.SetDefault("SYNC_PAGE_DELAY", 300*time.Millisecond)
	v.SetDefault("SYNC_CRON_ENABLED", false)
	v.SetDefault("SYNC_INCREMENTAL_CRON", "0 */30 * * * *")
	v.SetDefault("SYNC_FULL_CRON", "0 0 3 * * *")
	v.SetDefault("ZOHO_TOKEN_CRON", "0 */20 * * * *")
	v.SetDefault("SYNC_LOCK_TTL", 30*time.Minute)
	v.SetDefault("SYNC_MANUAL_COOLDOWN", 30*time.Second)
	v.SetDefault("HEALTH_STALE_AFTER", 24*time.Hour)
	v.SetDefault("RETENTION_CRON", "0 30 4 * * *")
	v.SetDefault("RETENTION_PERIOD", 90*24*time.Hour)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// ==================== 校验 ====================

// Validate 校验必需配置，缺失时列出全部缺失项
func (c *Config) Validate() error {
	values := map[string]string{
		"ZOHO_CLIENT_ID":       c.Zoho.ClientID,
		"ZOHO_CLIENT_SECRET":   c.Zoho.ClientSecret,
		"ZOHO_REFRESH_TOKEN":   c.Zoho.RefreshToken,
		"ZOHO_ORGANIZATION_ID": c.Zoho.OrganizationID,
		"DATABASE_URL":         c.Database.URL,
		"GEMINI_API_KEY":       c.AI.GeminiAPIKey,
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("缺少必需的环境变量: %s", strings.Join(missing, ", "))
	}

	if c.Sync.PageLimit <= 0 {
		return errors.New("SYNC_PAGE_LIMIT 必须大于 0")
	}
	if c.Sync.PageSize <= 0 || c.Sync.PageSize > 200 {
		return errors.New("SYNC_PAGE_SIZE 必须在 1-200 之间")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Email    EmailConfig    `json:"email"`
	CRM      CRMConfig      `json:"crm"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env                 string        `json:"env"`                    // 运行环境: local / prod
	LogLevel            string        `json:"log_level"`              // 日志级别: debug / info / warn / error
	HTTPAddr            string        `json:"http_addr"`              // API 服务监听地址
	UserAgent           string        `json:"user_agent"`             // 抓取用 User-Agent
	FetchTimeout        time.Duration `json:"fetch_timeout"`          // 单次抓取超时（如 "10s"）
	BatchDelay          time.Duration `json:"batch_delay"`            // 整批刷新的条目间隔（如 "2s"）
	AutoRefreshCheckIvl time.Duration `json:"auto_refresh_check_ivl"` // 自动刷新条件的检查间隔
	DedupWindow         int           `json:"dedup_window"`           // 导入去重窗口（秒）
	FetchRate           float64       `json:"fetch_rate"`             // 出站抓取限流速率（次/秒，需要 Redis）
	FetchBurst          float64       `json:"fetch_burst"`            // 出站抓取限流桶容量
	NotifyEmail         string        `json:"notify_email"`           // 状态变更通知接收邮箱
}

// DatabaseConfig 本地数据库配置。
type DatabaseConfig struct {
	Path string `json:"path"` // sqlite 文件路径
}

// RedisConfig Redis 缓存配置。地址为空时禁用依赖 Redis 的功能。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// CRMConfig CRM 单向同步配置。Endpoint 为空时禁用同步。
type CRMConfig struct {
	Endpoint string            `json:"endpoint"`  // CRM 接口地址
	APIKey   string            `json:"api_key"`   // 鉴权密钥
	FieldMap map[string]string `json:"field_map"` // 内部字段名 -> CRM 字段名
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// 解析 JSON
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault 加载配置，如果失败则返回默认配置（不报错）。
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// Save 保存配置到 JSON 文件。
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:                 "local",
			LogLevel:            "info",
			HTTPAddr:            ":8082",
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			FetchTimeout:        10 * time.Second,
			BatchDelay:          2 * time.Second,
			AutoRefreshCheckIvl: 10 * time.Minute,
			DedupWindow:         3600,
			FetchRate:           1,
			FetchBurst:          2,
			NotifyEmail:         "",
		},
		Database: DatabaseConfig{
			Path: "properties.db",
		},
		Redis: RedisConfig{
			Addr:     "",
			Password: "",
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		CRM: CRMConfig{
			Endpoint: "",
			APIKey:   "",
			FieldMap: nil,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.UserAgent == "" {
		cfg.App.UserAgent = defaults.App.UserAgent
	}
	if cfg.App.FetchTimeout == 0 {
		cfg.App.FetchTimeout = defaults.App.FetchTimeout
	}
	if cfg.App.BatchDelay == 0 {
		cfg.App.BatchDelay = defaults.App.BatchDelay
	}
	if cfg.App.AutoRefreshCheckIvl == 0 {
		cfg.App.AutoRefreshCheckIvl = defaults.App.AutoRefreshCheckIvl
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.App.FetchRate == 0 {
		cfg.App.FetchRate = defaults.App.FetchRate
	}
	if cfg.App.FetchBurst == 0 {
		cfg.App.FetchBurst = defaults.App.FetchBurst
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = defaults.Database.Path
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("crm_api_key", "CRM_API_KEY")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_USER_AGENT"); v != "" {
		cfg.App.UserAgent = v
	}
	if v := os.Getenv("APP_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.FetchTimeout = d
		}
	}
	if v := os.Getenv("APP_BATCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.BatchDelay = d
		}
	}
	if v := os.Getenv("APP_AUTO_REFRESH_CHECK_IVL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.AutoRefreshCheckIvl = d
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}
	if v := os.Getenv("APP_NOTIFY_EMAIL"); v != "" {
		cfg.App.NotifyEmail = v
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}

	if v := os.Getenv("CRM_ENDPOINT"); v != "" {
		cfg.CRM.Endpoint = v
	}
	if v := viper.GetString("crm_api_key"); v != "" {
		cfg.CRM.APIKey = v
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持时间Duration字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		FetchTimeout        string `json:"fetch_timeout"`
		BatchDelay          string `json:"batch_delay"`
		AutoRefreshCheckIvl string `json:"auto_refresh_check_ivl"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.FetchTimeout != "" {
		duration, err := time.ParseDuration(aux.FetchTimeout)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout format: %w", err)
		}
		a.FetchTimeout = duration
	}
	if aux.BatchDelay != "" {
		duration, err := time.ParseDuration(aux.BatchDelay)
		if err != nil {
			return fmt.Errorf("invalid batch_delay format: %w", err)
		}
		a.BatchDelay = duration
	}
	if aux.AutoRefreshCheckIvl != "" {
		duration, err := time.ParseDuration(aux.AutoRefreshCheckIvl)
		if err != nil {
			return fmt.Errorf("invalid auto_refresh_check_ivl format: %w", err)
		}
		a.AutoRefreshCheckIvl = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		FetchTimeout        string `json:"fetch_timeout"`
		BatchDelay          string `json:"batch_delay"`
		AutoRefreshCheckIvl string `json:"auto_refresh_check_ivl"`
		*Alias
	}{
		FetchTimeout:        a.FetchTimeout.String(),
		BatchDelay:          a.BatchDelay.String(),
		AutoRefreshCheckIvl: a.AutoRefreshCheckIvl.String(),
		Alias:               (*Alias)(&a),
	})
}

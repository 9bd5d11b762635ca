package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Database DatabaseConfig `mapstructure:"database"`
	Download DownloadConfig `mapstructure:"download"`
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	Username    string   `mapstructure:"username"`     // 为空则不启用认证
	Password    string   `mapstructure:"password"`     // 为空则不启用认证
	CORSOrigins []string `mapstructure:"cors_origins"` // 允许的跨域来源
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	Dir        string `mapstructure:"dir"`         // 日志目录（output 为 file 时生效）
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // SQLite 数据库文件路径
}

type DownloadConfig struct {
	Dir                string   `mapstructure:"dir"`                  // 字幕和媒体文件输出目录
	MaxConcurrentTasks int      `mapstructure:"max_concurrent_tasks"` // 同时执行的任务上限
	MaxPendingTasks    int      `mapstructure:"max_pending_tasks"`    // 等待队列上限，0 表示不限制
	TaskRetentionHours int      `mapstructure:"task_retention_hours"` // 终态任务保留时长
	CancelGraceSeconds int      `mapstructure:"cancel_grace_seconds"` // 取消确认宽限期
	Languages          []string `mapstructure:"languages"`            // 默认字幕语言
	Formats            []string `mapstructure:"formats"`              // 默认输出格式
	Proxies            []string `mapstructure:"proxies"`              // 初始代理池
	YtdlpBinary        string   `mapstructure:"ytdlp_binary"`
	MaxRetries         int      `mapstructure:"max_retries"`         // 解析失败重试次数
	RetryDelaySeconds  int      `mapstructure:"retry_delay_seconds"` // 重试基础延迟（指数退避）
	ThumbnailWidth     int      `mapstructure:"thumbnail_width"`     // 封面缩略图宽度
}

type WhisperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Binary   string `mapstructure:"binary"`
	Model    string `mapstructure:"model"`    // tiny/base/small/medium/large
	Language string `mapstructure:"language"` // 为空则自动检测
}

type WatchConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir"`            // 监听目录，新增媒体文件自动提交转写任务
	StableSeconds int    `mapstructure:"stable_seconds"` // 文件大小稳定多久后认为写入完成
}

type CleanupConfig struct {
	Cron                 string `mapstructure:"cron"`                   // 清理任务的 cron 表达式
	TempMaxAgeHours      int    `mapstructure:"temp_max_age_hours"`     // 临时文件保留时长
	HistoryRetentionDays int    `mapstructure:"history_retention_days"` // 历史记录保留天数，0 表示永久保留
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.cors_origins", []string{"*"})

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.dir", "data/logs")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "subtitle-fusion")

	// 数据库默认配置
	viper.SetDefault("database.path", "data/subtitle-fusion.db")

	// 下载默认配置
	viper.SetDefault("download.dir", "data/downloads")
	viper.SetDefault("download.max_concurrent_tasks", 3)
	viper.SetDefault("download.max_pending_tasks", 0)
	viper.SetDefault("download.task_retention_hours", 24)
	viper.SetDefault("download.cancel_grace_seconds", 5)
	viper.SetDefault("download.languages", []string{"zh-CN", "en"})
	viper.SetDefault("download.formats", []string{"srt", "vtt", "txt"})
	viper.SetDefault("download.ytdlp_binary", "yt-dlp")
	viper.SetDefault("download.max_retries", 3)
	viper.SetDefault("download.retry_delay_seconds", 2)
	viper.SetDefault("download.thumbnail_width", 320)

	// Whisper默认配置
	viper.SetDefault("whisper.enabled", true)
	viper.SetDefault("whisper.binary", "whisper")
	viper.SetDefault("whisper.model", "base")
	viper.SetDefault("whisper.language", "")

	// 目录监听默认配置
	viper.SetDefault("watch.enabled", false)
	viper.SetDefault("watch.dir", "data/watch")
	viper.SetDefault("watch.stable_seconds", 2)

	// 清理默认配置
	viper.SetDefault("cleanup.cron", "0 * * * *") // 每小时整点
	viper.SetDefault("cleanup.temp_max_age_hours", 24)
	viper.SetDefault("cleanup.history_retention_days", 90)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT密钥未设置")
	}
	if config.Download.Dir == "" {
		return fmt.Errorf("下载目录未设置")
	}
	if config.Download.MaxConcurrentTasks < 1 {
		return fmt.Errorf("任务并发数必须大于 0")
	}
	if config.Watch.Enabled && config.Watch.Dir == "" {
		return fmt.Errorf("已启用目录监听但未设置监听目录")
	}
	return nil
}

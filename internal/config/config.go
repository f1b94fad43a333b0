package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Monetag  MonetagConfig  `mapstructure:"monetag"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	AdCredited      string `mapstructure:"ad_credited"`
	WithdrawRequest string `mapstructure:"withdraw_request"`
}

// BusinessConfig 业务规则配置
type BusinessConfig struct {
	DailyLimit        int    `mapstructure:"daily_limit"`         // 每人每天最多计费广告数
	MinWithdrawMills  int64  `mapstructure:"min_withdraw_mills"`  // 最低提现金额（毫，1元=1000毫）
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes"` // 广告会话有效期
	MacroTaskCount    int    `mapstructure:"macro_task_count"`    // 每人每天轮换的大额任务数（1-8）
	MaxRetryCount     int    `mapstructure:"max_retry_count"`     // outbox 消息最大重试次数
	AllowSimulate     bool   `mapstructure:"allow_simulate"`      // 是否开放调试用的模拟计费接口
	PostbackToken     string `mapstructure:"postback_token"`      // 广告商回调共享密钥，为空则不校验
}

// MonetagConfig 广告提供商配置
type MonetagConfig struct {
	SDKSrc    string `mapstructure:"sdk_src"`
	MainZone  string `mapstructure:"main_zone"`  // 网页类任务的广告位
	VideoZone string `mapstructure:"video_zone"` // 视频类任务的广告位，为空时退回 main_zone
	ShowFn    string `mapstructure:"show_fn"`    // 前端展示函数名，为空时按广告位推导 show_{zone}
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	applyDefaults(config)

	GlobalConfig = config
	return config
}

func applyDefaults(cfg *Config) {
	if cfg.Business.DailyLimit <= 0 {
		cfg.Business.DailyLimit = 15
	}
	if cfg.Business.MinWithdrawMills <= 0 {
		cfg.Business.MinWithdrawMills = 5000
	}
	if cfg.Business.SessionTTLMinutes <= 0 {
		cfg.Business.SessionTTLMinutes = 20
	}
	if cfg.Business.MacroTaskCount <= 0 {
		cfg.Business.MacroTaskCount = 2
	}
	if cfg.Business.MacroTaskCount > 8 {
		cfg.Business.MacroTaskCount = 8
	}
	if cfg.Business.MaxRetryCount <= 0 {
		cfg.Business.MaxRetryCount = 5
	}
}

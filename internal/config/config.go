package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Terminal TerminalConfig `mapstructure:"terminal"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// TerminalConfig 终端与交易参数
type TerminalConfig struct {
	Port            string        `mapstructure:"port"`
	SerialNumber    string        `mapstructure:"serial_number"`
	TerminalNumber  string        `mapstructure:"terminal_number"`
	MerchantNumber  string        `mapstructure:"merchant_number"`
	PaymentType     string        `mapstructure:"payment_type"` // Sale, Refund
	Amount          string        `mapstructure:"amount"`
	Latency         time.Duration `mapstructure:"latency"`
	SimulateDecline bool          `mapstructure:"simulate_decline"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	MockMode    bool          `mapstructure:"mock_mode"` // 使用模拟通道
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// ServerConfig HTTP查询服务配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"` // json, console
	Output  string            `mapstructure:"output"` // stdout, file, both
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		v = viper.New()
		cfg, err = load(v, configPath)
	})
	return err
}

// Load 不经过全局单例直接加载一份配置
func Load(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 环境变量，例如 PCPOS_TERMINAL_PORT
	v.SetEnvPrefix("PCPOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("terminal.port", "COM3")
	v.SetDefault("terminal.serial_number", "003000009592")
	v.SetDefault("terminal.terminal_number", "96090001")
	v.SetDefault("terminal.merchant_number", "017379960902001")
	v.SetDefault("terminal.payment_type", "Sale")
	v.SetDefault("terminal.amount", "1000")
	v.SetDefault("terminal.latency", "500ms")
	v.SetDefault("terminal.simulate_decline", false)

	v.SetDefault("serial.mock_mode", true)
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.read_timeout", "1s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/pcpos.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "pcpos.log")
	v.SetDefault("log.file.max_size", 50)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Terminal.PaymentType {
	case "", "Sale", "Refund":
	default:
		return fmt.Errorf("terminal.payment_type: unsupported value %q", c.Terminal.PaymentType)
	}
	if c.Terminal.Latency < 0 {
		return fmt.Errorf("terminal.latency: must not be negative")
	}
	switch c.Serial.Parity {
	case "", "N", "none", "O", "odd", "E", "even":
	default:
		return fmt.Errorf("serial.parity: unsupported value %q", c.Serial.Parity)
	}
	if c.Database.Enabled {
		switch c.Database.Driver {
		case "sqlite", "sqlite3", "mysql", "postgres", "postgresql":
		default:
			return fmt.Errorf("database.driver: unsupported value %q", c.Database.Driver)
		}
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()

		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		cfg = newCfg
		if callback != nil {
			callback(cfg)
		}
	})
}

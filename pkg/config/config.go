package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Mail     MailConfig     `mapstructure:"mail"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Session  SessionConfig  `mapstructure:"session"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	// TemplateDir overrides the embedded templates when set (useful while editing pages).
	TemplateDir string `mapstructure:"template_dir"`
}

// Addr is the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	// Driver is one of mysql, sqlite or memory.
	Driver   string       `mapstructure:"driver"`
	MySQL    MySQLConfig  `mapstructure:"mysql"`
	SQLite   SQLiteConfig `mapstructure:"sqlite"`
	Seed     bool         `mapstructure:"seed"`
	LogLevel string       `mapstructure:"log_level"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
	LeaseTTL    int64         `mapstructure:"lease_ttl"`
}

func (c *EtcdConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func (c *MongoDBConfig) Enabled() bool {
	return c.URI != ""
}

type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type MailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (c *MailConfig) Enabled() bool {
	return c.Host != ""
}

type UploadConfig struct {
	Dir               string   `mapstructure:"dir"`
	URLPrefix         string   `mapstructure:"url_prefix"`
	MaxBytes          int64    `mapstructure:"max_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxDimension      int      `mapstructure:"max_dimension"`
	Quality           int      `mapstructure:"quality"`
	DefaultImage      string   `mapstructure:"default_image"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "shopfront")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "shop.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 50)
	v.SetDefault("database.seed", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")
	v.SetDefault("etcd.lease_ttl", 30)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("mongodb.database", "shop")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("grpc.host", "0.0.0.0")

	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.use_tls", true)
	v.SetDefault("mail.timeout", 10*time.Second)

	v.SetDefault("upload.dir", "static/uploads/products")
	v.SetDefault("upload.url_prefix", "uploads/products")
	v.SetDefault("upload.max_bytes", 16<<20)
	v.SetDefault("upload.allowed_extensions", []string{"png", "jpg", "jpeg", "gif"})
	v.SetDefault("upload.max_dimension", 800)
	v.SetDefault("upload.quality", 85)
	v.SetDefault("upload.default_image", "images/default-product.svg")

	v.SetDefault("session.cookie_name", "shop_session")
	v.SetDefault("session.ttl", 7*24*time.Hour)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.email", "admin@shop.com")
	v.SetDefault("admin.password", "admin123")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Load reads the YAML file at configPath. An empty path means defaults plus
// SHOP_* environment overrides only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("shop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		// Read config file
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

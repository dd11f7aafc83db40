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
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Mail     MailConfig     `mapstructure:"mail"`
	LDAP     LDAPConfig     `mapstructure:"ldap"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Renotify RenotifyConfig `mapstructure:"renotify"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PublicURL is the externally reachable base used in notification links.
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expire time.Duration `mapstructure:"expire"`
}

type MailConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	Admins   []string `mapstructure:"admins"`
}

type LDAPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	BindDN       string        `mapstructure:"bind_dn"`
	BindPassword string        `mapstructure:"bind_password"`
	UserBase     string        `mapstructure:"user_base"`
	GroupBase    string        `mapstructure:"group_base"`
	Retries      int           `mapstructure:"retries"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	TimeZone       string `mapstructure:"time_zone"`
	DateLayout     string `mapstructure:"date_layout"`
	GlobalCategory string `mapstructure:"global_category"`
	ViewerRole     string `mapstructure:"viewer_role"`
}

type RenotifyConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Schedule      string        `mapstructure:"schedule"`
	ThresholdDays int           `mapstructure:"threshold_days"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type QuizConfig struct {
	// Descending flips the order_index sort for both form rendering and
	// answer transcripts.
	Descending bool `mapstructure:"descending"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configs/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.LDAP.Retries < 1 {
		cfg.LDAP.Retries = 1
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "fir")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fir")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 24*time.Hour)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire", 24*time.Hour)

	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "noreply@localhost")
	v.SetDefault("mail.admins", []string{})

	v.SetDefault("ldap.enabled", false)
	v.SetDefault("ldap.url", "")
	v.SetDefault("ldap.bind_dn", "")
	v.SetDefault("ldap.bind_password", "")
	v.SetDefault("ldap.user_base", "users")
	v.SetDefault("ldap.group_base", "groups")
	v.SetDefault("ldap.retries", 3)
	v.SetDefault("ldap.retry_delay", 2*time.Second)
	v.SetDefault("ldap.timeout", 10*time.Second)

	v.SetDefault("notify.time_zone", "Europe/Zurich")
	v.SetDefault("notify.date_layout", "Jan 02 2006 15:04:05")
	v.SetDefault("notify.global_category", "Global")
	v.SetDefault("notify.viewer_role", "Incident viewers")

	v.SetDefault("renotify.enabled", true)
	v.SetDefault("renotify.schedule", "@hourly")
	v.SetDefault("renotify.threshold_days", 7)
	v.SetDefault("renotify.lock_ttl", 10*time.Minute)

	v.SetDefault("quiz.descending", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnvVariables(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.public_url", "USER_INTERACTION_SERVER")
	v.BindEnv("server.allowed_origins", "CORS_ALLOWED_ORIGINS")

	// Database
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Redis
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Mail
	v.BindEnv("mail.host", "EMAIL_HOST")
	v.BindEnv("mail.port", "EMAIL_PORT")
	v.BindEnv("mail.user", "EMAIL_HOST_USER")
	v.BindEnv("mail.password", "EMAIL_HOST_PASSWORD")
	v.BindEnv("mail.from", "EMAIL_FROM")
	v.BindEnv("mail.admins", "ADMIN_EMAILS")

	// LDAP
	v.BindEnv("ldap.enabled", "LDAP_ENABLED")
	v.BindEnv("ldap.url", "LDAP_SERVER")
	v.BindEnv("ldap.bind_dn", "LDAP_BIND_DN")
	v.BindEnv("ldap.bind_password", "LDAP_BIND_PASSWORD")
	v.BindEnv("ldap.user_base", "LDAP_USER_QUERY_BASE")
	v.BindEnv("ldap.group_base", "LDAP_GROUP_QUERY_BASE")
	v.BindEnv("ldap.retries", "LDAP_RETRIES")
	v.BindEnv("ldap.retry_delay", "LDAP_RETRY_DELAY")

	// Notifications
	v.BindEnv("notify.time_zone", "TIME_ZONE")
	v.BindEnv("notify.date_layout", "UI_DATE_FORMAT")

	// Renotification
	v.BindEnv("renotify.schedule", "RENOTIFY_SCHEDULE")
	v.BindEnv("renotify.threshold_days", "RENOTIFICATION_THRESHOLD")

	// Log
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode,
	)
}

package conf

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds the application configuration.
type AppConfig struct {
	Mode                  string `mapstructure:"mode"`
	Port                  int    `mapstructure:"port"`
	Name                  string `mapstructure:"name"`
	Version               string `mapstructure:"version"`
	TimeZone              string `mapstructure:"time_zone"`
	*LogConfig            `mapstructure:"log"`
	*MongodbConfig        `mapstructure:"mongodb"`
	*WorkerConfig         `mapstructure:"worker"`
	*RabbitMQConfig       `mapstructure:"rabbitmq"`
	*JwtConfig            `mapstructure:"jwt"`
	*RedisConfig          `mapstructure:"redis"`
	*RateLimiterConfig    `mapstructure:"rate_limiter"`
	*LockConfig           `mapstructure:"lock"`
	*PricingConfig        `mapstructure:"pricing"`
	*WechatPayConfig      `mapstructure:"wechat_pay"`
	*OmiseConfig          `mapstructure:"omise"`
	*TracingConfig        `mapstructure:"tracing"`
	*StoreDirectoryConfig `mapstructure:"store_directory"`
}

// IsDev reports whether the app runs in a mode that trusts the X-User-Id header.
func (c *AppConfig) IsDev() bool {
	return c.Mode == "dev" || c.Mode == "test"
}

// JwtConfig holds the JWT configuration.
type JwtConfig struct {
	Algorithm      string `mapstructure:"algorithm"`
	Secret         string `mapstructure:"secret"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	PublicKeyFile  string `mapstructure:"public_key_file"`
	TTLMinutes     int    `mapstructure:"ttl_minutes"`
}

// MongodbConfig holds the MongoDB configuration.
type MongodbConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DB         string `mapstructure:"db"`
	ReplicaSet string `mapstructure:"replica_set"` // 交易需要副本集
}

// URI builds the connection string.
func (c *MongodbConfig) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	if c.ReplicaSet != "" {
		q.Set("replicaSet", c.ReplicaSet)
	}
	if c.User != "" {
		q.Set("authSource", "admin")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// LogConfig holds the logger configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// WorkerConfig holds all background worker configurations.
type WorkerConfig struct {
	Outbox          OutboxWorkerConfig    `mapstructure:"outbox"`
	BookingSweeper  SweeperConfig         `mapstructure:"booking_sweeper"`
	CardSweeper     SweeperConfig         `mapstructure:"card_sweeper"`
	BalanceVerifier BalanceVerifierConfig `mapstructure:"balance_verifier"`
}

// OutboxWorkerConfig holds the configuration for the outbox polling worker.
type OutboxWorkerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
}

// SweeperConfig configures a periodic cleanup worker.
type SweeperConfig struct {
	IntervalSeconds   int `mapstructure:"interval_seconds"`
	PendingTTLMinutes int `mapstructure:"pending_ttl_minutes"`
	BatchSize         int `mapstructure:"batch_size"`
}

type BalanceVerifierConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
}

// RabbitMQConfig holds the RabbitMQ configuration.
type RabbitMQConfig struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	User             string `mapstructure:"user"`
	Password         string `mapstructure:"password"`
	Exchange         string `mapstructure:"exchange"`
	RefundRetryQueue string `mapstructure:"refund_retry_queue"`
	BookingPaidQueue string `mapstructure:"booking_paid_queue"`
}

// URL builds the AMQP connection string.
func (c *RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port)
}

// RedisConfig holds the Redis client configuration.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimiterPolicy defines the limit and interval for a policy.
type RateLimiterPolicy struct {
	Interval string `mapstructure:"interval"` // e.g., "1s", "1m", "1h"
	Limit    int    `mapstructure:"limit"`
}

// RateLimiterConfig holds all rate limiting policies.
type RateLimiterConfig struct {
	Default  RateLimiterPolicy            `mapstructure:"default"`
	Policies map[string]RateLimiterPolicy `mapstructure:"policies"`
}

// LockConfig configures the keyed locks that serialize card and balance settlement.
type LockConfig struct {
	Backend      string `mapstructure:"backend"` // redis | local
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	WaitMillis   int    `mapstructure:"wait_millis"`
	RetryMillis  int    `mapstructure:"retry_millis"`
	DebitRetries int    `mapstructure:"debit_retries"`
}

func (c *LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c *LockConfig) Wait() time.Duration {
	return time.Duration(c.WaitMillis) * time.Millisecond
}

func (c *LockConfig) RetryInterval() time.Duration {
	return time.Duration(c.RetryMillis) * time.Millisecond
}

// PricingConfig holds the defaults seeded into the settings document when none exists.
type PricingConfig struct {
	SockPrice               string   `mapstructure:"sock_price"`
	ExtraParentFullDayPrice string   `mapstructure:"extra_parent_full_day_price"`
	KidFullDayPrice         string   `mapstructure:"kid_full_day_price"`
	FreeParentsPerKid       int      `mapstructure:"free_parents_per_kid"`
	AppointmentDeadline     string   `mapstructure:"appointment_deadline"`
	OffWeekdays             []string `mapstructure:"off_weekdays"`
	OnWeekends              []string `mapstructure:"on_weekends"`
}

// WechatPayConfig holds the merchant credentials for WeChat Pay API v3.
type WechatPayConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	AppID           string  `mapstructure:"app_id"`
	MchID           string  `mapstructure:"mch_id"`
	SerialNo        string  `mapstructure:"serial_no"`
	PrivateKeyFile  string  `mapstructure:"private_key_file"`
	APIv3Key        string  `mapstructure:"api_v3_key"`
	NotifyURL       string  `mapstructure:"notify_url"`
	RefundNotifyURL string  `mapstructure:"refund_notify_url"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Burst           int     `mapstructure:"burst"`
}

type OmiseConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
	Currency  string `mapstructure:"currency"`
	ReturnURI string `mapstructure:"return_uri"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type StoreDirectoryConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// NewConfig loads the application configuration from a file.
func NewConfig(confFile string) (*AppConfig, error) {
	// Load .env file. It's okay if it doesn't exist.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(confFile)
	setDefaults(v)

	// `mongodb.host` -> `MONGODB_HOST`
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var conf AppConfig
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loc, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}
	time.Local = loc

	return &conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("time_zone", "Asia/Shanghai")
	v.SetDefault("log.level", "info")
	v.SetDefault("worker.outbox.interval_seconds", 5)
	v.SetDefault("worker.outbox.batch_size", 50)
	v.SetDefault("worker.booking_sweeper.interval_seconds", 60)
	v.SetDefault("worker.booking_sweeper.pending_ttl_minutes", 60)
	v.SetDefault("worker.booking_sweeper.batch_size", 100)
	v.SetDefault("worker.card_sweeper.interval_seconds", 300)
	v.SetDefault("worker.card_sweeper.pending_ttl_minutes", 60)
	v.SetDefault("worker.balance_verifier.interval_seconds", 3600)
	v.SetDefault("worker.balance_verifier.batch_size", 200)
	v.SetDefault("rabbitmq.exchange", "minimars.events")
	v.SetDefault("rabbitmq.refund_retry_queue", "minimars.refund.retry")
	v.SetDefault("rabbitmq.booking_paid_queue", "minimars.booking.paid")
	v.SetDefault("lock.backend", "redis")
	v.SetDefault("lock.ttl_seconds", 10)
	v.SetDefault("lock.wait_millis", 3000)
	v.SetDefault("lock.retry_millis", 50)
	v.SetDefault("lock.debit_retries", 3)
	v.SetDefault("pricing.sock_price", "10")
	v.SetDefault("pricing.extra_parent_full_day_price", "50")
	v.SetDefault("pricing.kid_full_day_price", "188")
	v.SetDefault("pricing.free_parents_per_kid", 2)
	v.SetDefault("pricing.appointment_deadline", "16:00:00")
	v.SetDefault("wechat_pay.rate_per_second", 20)
	v.SetDefault("wechat_pay.burst", 5)
	v.SetDefault("omise.currency", "thb")
	v.SetDefault("store_directory.ttl_seconds", 300)
}

package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/mongodb"
	"github.com/lltxwdk/minimars-server/internal/db"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/gateway/omise"
	"github.com/lltxwdk/minimars-server/internal/gateway/wechatpay"
	"github.com/lltxwdk/minimars-server/internal/lock"
	"github.com/lltxwdk/minimars-server/internal/models"
	"github.com/lltxwdk/minimars-server/internal/mq"
	"github.com/lltxwdk/minimars-server/internal/mq/noop"
	"github.com/lltxwdk/minimars-server/internal/mq/rabbitmq"
	"github.com/lltxwdk/minimars-server/pkg/jwt"
	"github.com/lltxwdk/minimars-server/pkg/money"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// --- Type-safe configuration values for dependency injection ---

type AppName string
type AppMode string

// RedisNamespace is a custom type for the Redis key namespace.
type RedisNamespace string

// TrustHeaders reports whether X-User-Id style headers are accepted in place of a token.
type TrustHeaders bool

func ProvideAppName(c *conf.AppConfig) AppName {
	return AppName(c.Name)
}

func ProvideAppMode(c *conf.AppConfig) AppMode {
	return AppMode(c.Mode)
}

func ProvideTrustHeaders(c *conf.AppConfig) TrustHeaders {
	return TrustHeaders(c.IsDev())
}

// --- Providers for application components ---

// ProvideDatabase opens the database, creates its indexes and seeds the pricing settings
// from the config when the collection has none.
func ProvideDatabase(client *mongo.Client, cfg *conf.MongodbConfig, pricing *conf.PricingConfig, logger *zap.Logger) (*mongo.Database, error) {
	database := client.Database(cfg.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mongodb.EnsureIndexes(ctx, database); err != nil {
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	defaults, err := SettingsFromPricing(pricing)
	if err != nil {
		return nil, err
	}
	if err := mongodb.NewSettingsDAO(database, logger).EnsureSettings(ctx, defaults); err != nil {
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}
	return database, nil
}

// SettingsFromPricing converts the configured price defaults. Empty prices are zero.
func SettingsFromPricing(p *conf.PricingConfig) (*models.Settings, error) {
	s := &models.Settings{}
	if p == nil {
		return s, nil
	}

	prices := []struct {
		name string
		raw  string
		dst  *money.Amount
	}{
		{"sock_price", p.SockPrice, &s.SockPrice},
		{"extra_parent_full_day_price", p.ExtraParentFullDayPrice, &s.ExtraParentFullDayPrice},
		{"kid_full_day_price", p.KidFullDayPrice, &s.KidFullDayPrice},
	}
	for _, price := range prices {
		if price.raw == "" {
			continue
		}
		amount, err := money.Parse(price.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse pricing.%s: %w", price.name, err)
		}
		*price.dst = amount
	}

	s.FreeParentsPerKid = p.FreeParentsPerKid
	s.AppointmentDeadline = p.AppointmentDeadline
	s.OffWeekdays = p.OffWeekdays
	s.OnWeekends = p.OnWeekends
	return s, nil
}

// ProvideMachineID attempts to parse a numeric id from the hostname (e.g., for StatefulSets).
// It defaults to 1 if parsing fails, which is safe for single-instance/dev environments.
func ProvideMachineID() uint16 {
	hostname, err := os.Hostname()
	if err != nil {
		fmt.Printf("WARN: Cannot get hostname, defaulting machine id to 1: %v\n", err)
		return 1
	}

	parts := strings.Split(hostname, "-")
	if len(parts) < 2 {
		fmt.Printf("WARN: Hostname '%s' does not fit 'name-id' format, defaulting machine id to 1\n", hostname)
		return 1
	}

	id, err := strconv.ParseUint(parts[len(parts)-1], 10, 16)
	if err != nil {
		fmt.Printf("WARN: Cannot parse id from hostname '%s', defaulting machine id to 1: %v\n", hostname, err)
		return 1
	}

	return uint16(id)
}

// ProvideTransactionManager decides which TransactionManager to use based on the app mode.
func ProvideTransactionManager(mode AppMode, client *mongo.Client) db.TransactionManager {
	if mode == "dev" || mode == "test" {
		// 單機 mongo 沒有副本集，不能開交易
		return db.NewNoOpTransactionManager()
	}
	return db.NewMongoTransactionManager(client)
}

// ProvideJwtGenerator creates a new JWT generator based on the app configuration.
func ProvideJwtGenerator(cfg *conf.AppConfig) (*jwt.Manager, error) {
	issuer := cfg.Name
	ttl := time.Duration(cfg.JwtConfig.TTLMinutes) * time.Minute

	switch cfg.JwtConfig.Algorithm {
	case "HS256":
		return jwt.NewSymmetric([]byte(cfg.JwtConfig.Secret), issuer, ttl)
	case "RS256":
		privateKeyData, err := os.ReadFile(cfg.JwtConfig.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key file: %w", err)
		}
		privateKey, err := gojwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}

		publicKeyData, err := os.ReadFile(cfg.JwtConfig.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read public key file: %w", err)
		}
		publicKey, err := gojwt.ParseRSAPublicKeyFromPEM(publicKeyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}

		return jwt.NewAsymmetric(privateKey, publicKey, issuer, ttl)
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm: %s", cfg.JwtConfig.Algorithm)
	}
}

// ProvideRedisNamespace creates a namespace string for Redis keys.
func ProvideRedisNamespace(cfg *conf.AppConfig) RedisNamespace {
	return RedisNamespace(fmt.Sprintf("%s:%s:", cfg.Name, cfg.Mode))
}

// ProvideRedisClient creates and returns a new Redis client based on the application configuration.
// It also returns a cleanup function to close the connection.
func ProvideRedisClient(cfg *conf.RedisConfig) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	cleanup := func() {
		client.Close()
	}

	return client, cleanup, nil
}

// ProvideLocker picks the lock backend. "local" only serializes within one process.
func ProvideLocker(cfg *conf.LockConfig, client *redis.Client, ns RedisNamespace, logger *zap.Logger) (lock.Locker, error) {
	switch cfg.Backend {
	case "", "redis":
		return lock.NewRedisLocker(client, string(ns), cfg.Wait(), cfg.RetryInterval(), logger), nil
	case "local":
		return lock.NewLocalLocker(cfg.Wait()), nil
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", cfg.Backend)
	}
}

// ProvideGatewayRegistry builds the registry from the enabled external gateways.
func ProvideGatewayRegistry(cfg *conf.AppConfig, logger *zap.Logger) (*gateway.Registry, error) {
	var adapters []gateway.Adapter

	wx, err := wechatpay.NewAdapter(context.Background(), cfg.WechatPayConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create wechat pay adapter: %w", err)
	}
	if wx != nil {
		adapters = append(adapters, wx)
	}

	om, err := omise.NewAdapter(cfg.OmiseConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create omise adapter: %w", err)
	}
	if om != nil {
		adapters = append(adapters, om)
	}

	return gateway.NewRegistry(adapters...), nil
}

// ProvidePublisher returns the RabbitMQ publisher, or an in-memory one in dev mode.
func ProvidePublisher(mode AppMode, cfg *conf.RabbitMQConfig, logger *zap.Logger) (mq.Publisher, func(), error) {
	if mode == "dev" {
		p := noop.NewPublisher()
		return p, p.Close, nil
	}
	p, err := rabbitmq.NewPublisher(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/lltxwdk/minimars-server/internal/app"
	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/mongodb"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/gateway"
	"github.com/lltxwdk/minimars-server/internal/limiter"
	"github.com/lltxwdk/minimars-server/internal/logger"
	"github.com/lltxwdk/minimars-server/internal/logic"
	http_middleware "github.com/lltxwdk/minimars-server/internal/middleware/http"
	"github.com/lltxwdk/minimars-server/internal/provider"
	"github.com/lltxwdk/minimars-server/internal/service"
	"github.com/lltxwdk/minimars-server/internal/tracing"
	"github.com/lltxwdk/minimars-server/internal/worker"
	"github.com/lltxwdk/minimars-server/pkg/jwt"
	"github.com/lltxwdk/minimars-server/pkg/snowflake"

	"github.com/google/wire"
)

// ------------------- 1. 定義 Provider 集合 -------------------

// baseProviders 包含所有應用共用的基礎元件 (不含 MQ)
var baseProviders = wire.NewSet(
	wire.FieldsOf(new(*conf.AppConfig), "Port", "LogConfig", "MongodbConfig", "WorkerConfig", "RedisConfig",
		"RateLimiterConfig", "LockConfig", "StoreDirectoryConfig", "PricingConfig"),
	provider.ProvideAppMode,
	provider.ProvideTrustHeaders,
	logger.NewLogger,
	tracing.NewTracerProvider,
	mongodb.NewMongoDB,
	provider.ProvideDatabase,
	provider.ProvideMachineID,
	provider.ProvideTransactionManager,
	provider.ProvideJwtGenerator,
	provider.ProvideRedisNamespace,
	provider.ProvideRedisClient,
	provider.ProvideLocker,
	provider.ProvideGatewayRegistry,
	limiter.NewManager,
	snowflake.NewGenerator,
	repositoryProviders,
	logicProviders,
	service.NewBookingHandler,
	wire.Bind(new(service.BookingService), new(*logic.BookingLogic)),
	service.NewCardHandler,
	wire.Bind(new(service.CardPurchaser), new(*logic.CardPurchase)),
	provideAuthMiddleware,
	wire.Bind(new(http_middleware.TokenParser), new(*jwt.Manager)),
	provideUnaryInterceptors,
	app.NewApp,
)

var repositoryProviders = wire.NewSet(
	mongodb.NewBookingDAO,
	wire.Bind(new(repository.BookingRepository), new(*mongodb.BookingDAO)),
	mongodb.NewPaymentDAO,
	wire.Bind(new(repository.PaymentRepository), new(*mongodb.PaymentDAO)),
	mongodb.NewCustomerDAO,
	wire.Bind(new(repository.CustomerRepository), new(*mongodb.CustomerDAO)),
	mongodb.NewCardDAO,
	wire.Bind(new(repository.CardRepository), new(*mongodb.CardDAO)),
	mongodb.NewCardTypeDAO,
	wire.Bind(new(repository.CardTypeRepository), new(*mongodb.CardTypeDAO)),
	mongodb.NewCatalogDAO,
	wire.Bind(new(repository.CouponRepository), new(*mongodb.CatalogDAO)),
	wire.Bind(new(repository.EventRepository), new(*mongodb.CatalogDAO)),
	wire.Bind(new(repository.GiftRepository), new(*mongodb.CatalogDAO)),
	mongodb.NewStoreDAO,
	wire.Bind(new(repository.StoreRepository), new(*mongodb.StoreDAO)),
	mongodb.NewSettingsDAO,
	wire.Bind(new(repository.SettingsRepository), new(*mongodb.SettingsDAO)),
	mongodb.NewAuditLogDAO,
	wire.Bind(new(repository.AuditLogRepository), new(*mongodb.AuditLogDAO)),
	mongodb.NewOutboxDAO,
	wire.Bind(new(repository.OutboxRepository), new(*mongodb.OutboxDAO)),
)

var logicProviders = wire.NewSet(
	logic.NewEventPublisher,
	logic.NewStoreDirectory,
	logic.NewInstrumentResolver,
	logic.NewBookingStateMachine,
	wire.Bind(new(logic.BookingHooks), new(*logic.BookingStateMachine)),
	logic.NewCardLifecycle,
	wire.Bind(new(logic.CardHooks), new(*logic.CardLifecycle)),
	logic.NewSettler,
	wire.Bind(new(logic.PaymentSettler), new(*logic.Settler)),
	logic.NewComposer,
	logic.NewRefundOrchestrator,
	logic.NewCardPurchase,
	logic.NewBookingLogic,
)

// rabbitMQProviders 包含 Publisher 和 Outbox Worker
var rabbitMQProviders = wire.NewSet(
	wire.FieldsOf(new(*conf.AppConfig), "RabbitMQConfig"),
	provider.ProvidePublisher,
	worker.NewOutboxProcessor,
)

// ------------------- 2. Frontend App 的注入器 -------------------

func InitializeFrontendApp(appConfig *conf.AppConfig) (*app.App, func(), error) {
	wire.Build(
		baseProviders,
		logic.NewNotifyLogic,
		service.NewNotifyHandler,
		wire.Bind(new(service.AdapterLookup), new(*gateway.Registry)),
		wire.Bind(new(service.NotificationConfirmer), new(*logic.NotifyLogic)),
		app.NewFrontendRegister,
		provideFrontendRegister,
		provideFrontendWorkers,
	)
	return nil, nil, nil
}

// ------------------- 3. Console App 的注入器 -------------------

func InitializeConsoleApp(appConfig *conf.AppConfig) (*app.App, func(), error) {
	wire.Build(
		baseProviders,
		rabbitMQProviders,
		app.NewConsoleRegister,
		provideConsoleRegister,
		provideConsoleWorkers,
	)
	return nil, nil, nil
}

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/lltxwdk/minimars-server/cmd/consumer/handlers"
	"github.com/lltxwdk/minimars-server/internal/conf"
	"github.com/lltxwdk/minimars-server/internal/dao/mongodb"
	"github.com/lltxwdk/minimars-server/internal/dao/repository"
	"github.com/lltxwdk/minimars-server/internal/logger"
	"github.com/lltxwdk/minimars-server/internal/logic"
	"github.com/lltxwdk/minimars-server/internal/provider"
	"github.com/lltxwdk/minimars-server/internal/worker"
	"github.com/lltxwdk/minimars-server/pkg/snowflake"

	"github.com/google/wire"
)

// InitializeConsumerApp creates the consumer application and its dependencies.
func InitializeConsumerApp(appConfig *conf.AppConfig) (*ConsumerApp, func(), error) {
	wire.Build(
		// Config Providers
		wire.FieldsOf(new(*conf.AppConfig), "LogConfig", "MongodbConfig", "RabbitMQConfig", "WorkerConfig",
			"RedisConfig", "LockConfig", "StoreDirectoryConfig", "PricingConfig"),
		provider.ProvideAppMode,

		// Common Components
		logger.NewLogger,
		mongodb.NewMongoDB,
		provider.ProvideDatabase,
		provider.ProvideTransactionManager,
		provider.ProvideMachineID,
		snowflake.NewGenerator,
		provider.ProvideRedisNamespace,
		provider.ProvideRedisClient,
		provider.ProvideLocker,
		provider.ProvideGatewayRegistry,

		// DAO Layer
		mongodb.NewBookingDAO,
		wire.Bind(new(repository.BookingRepository), new(*mongodb.BookingDAO)),
		wire.Bind(new(worker.StaleBookingFinder), new(*mongodb.BookingDAO)),
		mongodb.NewPaymentDAO,
		wire.Bind(new(repository.PaymentRepository), new(*mongodb.PaymentDAO)),
		wire.Bind(new(worker.PaidAmountSummer), new(*mongodb.PaymentDAO)),
		mongodb.NewCustomerDAO,
		wire.Bind(new(repository.CustomerRepository), new(*mongodb.CustomerDAO)),
		wire.Bind(new(worker.CustomerLister), new(*mongodb.CustomerDAO)),
		mongodb.NewCardDAO,
		wire.Bind(new(repository.CardRepository), new(*mongodb.CardDAO)),
		wire.Bind(new(worker.CardExpirer), new(*mongodb.CardDAO)),
		wire.Bind(new(worker.BalanceCardSummer), new(*mongodb.CardDAO)),
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

		// Logic Layer
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
		logic.NewBookingLogic,
		wire.Bind(new(worker.BookingCloser), new(*logic.BookingLogic)),
		wire.Bind(new(handlers.RefundRetrier), new(*logic.BookingLogic)),

		// MQ Consumer & Workers
		provideConsumer,
		worker.NewBookingSweeper,
		worker.NewCardSweeper,
		worker.NewBalanceVerifier,
		provideWorkers,

		// Handlers
		handlers.NewRefundRetryHandler,
		handlers.NewBookingPaidHandler,
		provideHandlers,

		// Final App
		NewConsumerApp,
	)
	return nil, nil, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"FlowSentry/pkg/config"
	"FlowSentry/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCacheService,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideMarketStream,

		// Analytics services
		ProvideStreamProcessor,
		ProvideAnomalyDetector,
		ProvideSignalGenerator,
		ProvideRiskScorer,
		ProvideAlertEngine,

		// Use cases
		ProvideObservationProcessor,
		ProvideTickCollector,
		ProvideKafkaTicksHandler,
		ProvideEvaluationUseCase,
		ProvideRedisQueue,
		ProvideScheduler,

		// HTTP and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"WaveScan/pkg/config"
	"WaveScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Logging and metrics
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories (with business logic)
		ProvideResultStore,
		ProvideEventPublisher,
		ProvideCandleSource,
		ProvideQuoteStream,

		// Engine and caching
		ProvideEngines,
		ProvideCache,
		ProvideCandleCache,

		// Use cases
		ProvideCandlesUseCase,
		ProvidePrefilterUseCase,
		ProvideResultProcessor,
		ProvideResultPipeline,
		ProvideScreenerUseCase,
		ProvideKafkaScanHandler,
		ProvideScanScheduler,
		ProvideCageWatcher,
		ProvideJobQueue,

		// Delivery
		ProvideHub,
		ProvideOpsHandler,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

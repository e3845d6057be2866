//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"NiftyEdge/pkg/config"
	"NiftyEdge/pkg/logger"
	"NiftyEdge/pkg/server"
)

// batchSet is everything a backtest run needs.
var batchSet = wire.NewSet(
	// Metrics
	ProvideMetrics,

	// Infrastructure clients
	ProvideRedisCache,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideKafkaProducer,

	// Repositories
	ProvideBarStore,
	ProvideArtifactPublisher,
	ProvideArtifactStore,
	ProvideSourceFactory,

	// Use cases
	ProvideThresholdOptions,
	ProvideBacktester,
)

// InitializeApp wires up all dependencies and returns the API application.
func InitializeApp(cfg *config.Config, l *logger.Logger) (*server.App, func(), error) {
	wire.Build(
		batchSet,

		ProvideLocker,
		ProvideHistorySource,
		ProvideSnapshotLoader,
		ProvideLiveClassifier,
		ProvideEdgeService,
		ProvideJobQueue,
		ProvideBacktestJob,

		// Transport
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,
		ProvideArtifactsHandler,

		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeBatch wires a single backtest run from the configuration.
func InitializeBatch(cfg *config.Config, l *logger.Logger) (*BatchRun, func(), error) {
	wire.Build(batchSet, ProvideBatchRun)
	return nil, nil, nil
}

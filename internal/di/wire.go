//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PairWatch/pkg/config"
	"PairWatch/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Backend and storage
		ProvideBackendClient,
		ProvidePairSource,
		ProvideSeriesSource,
		ProvideWindowConfig,
		ProvideCache,
		ProvideSnapshotStore,
		ProvideSnapshotPublisher,

		// Use cases
		ProvideTrackedPairs,
		ProvidePairMonitor,
		ProvideChartSync,
		ProvideKafkaConsumer,
		ProvideKafkaResultsHandler,

		// View layer
		ProvideRateLimiter,
		ProvideDashboardHandler,
		ProvideHub,
		ProvideHTTPServer,

		ProvideApp,
	)
	return &server.App{}, nil
}

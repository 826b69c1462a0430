//go:build wireinject
// +build wireinject

package di

import (
	"SignalPilot/pkg/config"
	"SignalPilot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes every opened resource in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,
		ProvideStorage,
		ProvideOrderBackend,
		ProvideHub,
		ProvideNotificationSink,

		// External services
		ProvideMarketData,
		ProvideIndicatorFeed,
		ProvideOscillator,
		ProvideReasoner,
		ProvideAccountValidator,
		ProvideClassifier,

		// Use cases
		ProvideMarketMonitor,
		ProvideDecisionEngine,
		ProvideProtection,
		ProvideTickerLedger,
		ProvideFanoutExecutor,
		ProvideSignalPipeline,
		ProvideSignalIntake,
		ProvideOrderLifecycle,
		ProvideScheduler,

		// Transports
		ProvideKafkaConsumer,
		ProvideKafkaSignalsHandler,
		ProvideHTTPServer,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}

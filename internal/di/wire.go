//go:build wireinject
// +build wireinject

package di

import (
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/config"
	"github.com/yybrother989/tesla-trading-agent-sub000/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function into wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvidePostgresClient,
		ProvideBarStore,
		ProvideMarketDataProvider,
		ProvideProviderLimiter,
		ProvideCacheBackend,
		ProvideResultCache,
		ProvideEventBus,

		// Realtime fanout
		ProvideHub,
		ProvideBridge,

		// Use cases
		ProvideQueryUseCase,
		ProvideIngestionManager,
		ProvideScheduler,

		// HTTP surface
		ProvideHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

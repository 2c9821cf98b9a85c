//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
)

var CoreInfraSet = wire.NewSet(
	NewLogging,
	NewLogger,
	NewMetricsRegistry,
	NewMetrics,
	NewTracing,
	NewConfigLoader,
)

var ManagementSet = wire.NewSet(
	NewConfig,
	NewConfigState,
	NewRecentLogs,
	NewManagement,
	NewServiceHandler,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	ManagementSet,
	wire.Struct(new(ApplicationOptions), "*"),
	NewApplication,
)

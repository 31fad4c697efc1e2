package telemetry

import (
	"github.com/gridora/gridora/internal/telemetry/repository"
	"github.com/gridora/gridora/internal/telemetry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("telemetry.service",
	fx.Provide(
		repository.ProvideRepository,
		service.NewService,
	),
)

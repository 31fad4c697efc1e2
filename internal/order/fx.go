package order

import (
	"github.com/gridora/gridora/internal/order/repository"
	"github.com/gridora/gridora/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(
		repository.ProvideRepository,
		service.NewService,
	),
)

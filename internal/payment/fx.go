package payment

import (
	"github.com/gridora/gridora/internal/payment/repository"
	"github.com/gridora/gridora/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(
		repository.ProvideRepository,
		service.NewService,
	),
)

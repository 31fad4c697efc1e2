package device

import (
	"github.com/gridora/gridora/internal/device/service"
	"go.uber.org/fx"
)

var Module = fx.Module("device.service",
	fx.Provide(service.NewService),
)

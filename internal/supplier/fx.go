package supplier

import (
	"github.com/easybilling/easybilling/internal/supplier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("supplier.service",
	fx.Provide(service.New),
)

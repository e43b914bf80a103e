package tenant

import (
	"github.com/easybilling/easybilling/internal/tenant/repository"
	"github.com/easybilling/easybilling/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

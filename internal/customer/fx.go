package customer

import (
	"github.com/easybilling/easybilling/internal/customer/repository"
	"github.com/easybilling/easybilling/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

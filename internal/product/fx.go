package product

import (
	"github.com/easybilling/easybilling/internal/product/repository"
	"github.com/easybilling/easybilling/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

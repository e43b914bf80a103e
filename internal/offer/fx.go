package offer

import (
	"github.com/easybilling/easybilling/internal/offer/repository"
	"github.com/easybilling/easybilling/internal/offer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

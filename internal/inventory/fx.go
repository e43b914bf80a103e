package inventory

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/inventory/repository"
	"github.com/easybilling/easybilling/internal/inventory/service"
)

var Module = fx.Module("inventory",
	fx.Provide(
		repository.New,
		service.New,
	),
)

package invoice

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/invoice/repository"
	"github.com/easybilling/easybilling/internal/invoice/service"
)

var Module = fx.Module("invoice",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

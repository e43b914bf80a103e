package outbox

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/outbox/repository"
	"github.com/easybilling/easybilling/internal/outbox/service"
)

var Module = fx.Module("outbox",
	fx.Provide(
		repository.New,
		service.NewEnqueuer,
		service.NewDispatcher,
		service.NewProcessor,
	),
)

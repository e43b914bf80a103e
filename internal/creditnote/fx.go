package creditnote

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/creditnote/service"
)

var Module = fx.Module("creditnote",
	fx.Provide(service.New),
)

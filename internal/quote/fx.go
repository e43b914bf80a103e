package quote

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/quote/service"
)

var Module = fx.Module("quote",
	fx.Provide(service.New),
)

package recurring

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/recurring/service"
)

var Module = fx.Module("recurring",
	fx.Provide(service.New),
)

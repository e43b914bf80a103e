package securitygroup

import (
	"go.uber.org/fx"

	"github.com/easybilling/easybilling/internal/securitygroup/service"
)

var Module = fx.Module("securitygroup",
	fx.Provide(
		service.NewEnforcer,
		service.New,
	),
)

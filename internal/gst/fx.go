package gst

import (
	"github.com/easybilling/easybilling/internal/gst/repository"
	"github.com/easybilling/easybilling/internal/gst/service"
	"go.uber.org/fx"
)

var Module = fx.Module("gst.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

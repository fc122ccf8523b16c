//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"
	"kiosk-go/internal/data"
	"kiosk-go/internal/kiosk"
	"kiosk-go/internal/server"
	"kiosk-go/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, *conf.Data, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, kiosk.ProviderSet, service.ProviderSet, newApp))
}

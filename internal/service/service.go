package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewKioskService, NewAdminService, NewExportService, NewImageService, NewStatusService)

// invoke 让路由处理函数经过服务端中间件链，operation 供 selector 匹配
func invoke(ctx http.Context, operation string, fn func(context.Context) (any, error)) (any, error) {
	http.SetOperation(ctx, operation)
	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		return fn(c)
	})
	return h(ctx, nil)
}

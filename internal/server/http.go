package server

import (
	"kiosk-go/internal/conf"
	"kiosk-go/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services HTTP 入口依赖的全部服务
type Services struct {
	Kiosk  *service.KioskService
	Admin  *service.AdminService
	Export *service.ExportService
	Images *service.ImageService
	Status *service.StatusService
}

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, svc Services, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
			selector.Server(rateLimit(newTokenBucket(c.Server.AdminRPS))).
				Prefix(service.AdminOperation).
				Build(),
		),
		http.ErrorEncoder(ErrorEncoder),
	}
	if c.Server.Http.Network != "" {
		opts = append(opts, http.Network(c.Server.Http.Network))
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if c.Server.Http.Timeout.Duration > 0 {
		opts = append(opts, http.Timeout(c.Server.Http.Timeout.Duration))
	}
	srv := http.NewServer(opts...)
	service.RegisterKioskHTTPServer(srv, svc.Kiosk)
	service.RegisterAdminHTTPServer(srv, svc.Admin, svc.Export)
	service.RegisterImageHTTPServer(srv, svc.Images)
	service.RegisterStatusHTTPServer(srv, svc.Status)
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}

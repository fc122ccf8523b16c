package service

import (
	"context"
	"time"

	"kiosk-go/internal/data"
	"kiosk-go/internal/kiosk"

	"github.com/go-kratos/kratos/v2/transport/http"
)

var serviceStartTime = time.Now()

// StatusReply 就绪探针的响应
type StatusReply struct {
	Status      string    `json:"status"`
	Backend     string    `json:"backend"`
	DBStatus    string    `json:"db_status"`
	Uptime      string    `json:"uptime"`
	Buildings   int       `json:"buildings"`
	LastUpdated time.Time `json:"last_updated"`
	CacheError  string    `json:"cache_error,omitempty"`
}

// StatusService 汇报存储可用性与终端缓存状态
type StatusService struct {
	data  *data.Data
	cache *kiosk.Cache
}

func NewStatusService(d *data.Data, cache *kiosk.Cache) *StatusService {
	return &StatusService{data: d, cache: cache}
}

// Check 存储不可用时返回 503
func (s *StatusService) Check(ctx context.Context) (*StatusReply, error) {
	reply := &StatusReply{
		Status:   "ok",
		Backend:  s.data.Backend(),
		DBStatus: "ok",
		Uptime:   time.Since(serviceStartTime).Round(time.Second).String(),
	}
	if err := s.data.Ping(ctx); err != nil {
		reply.Status = "unavailable"
		reply.DBStatus = "unavailable"
	}
	if s.cache != nil {
		st := s.cache.State()
		reply.Buildings = len(st.Buildings)
		reply.LastUpdated = st.LastUpdated
		reply.CacheError = st.Error
	}
	return reply, nil
}

// Healthz GET /healthz
func (s *StatusService) Healthz(ctx http.Context) error {
	out, err := invoke(ctx, "/healthz", func(c context.Context) (any, error) {
		return s.Check(c)
	})
	if err != nil {
		return err
	}
	reply := out.(*StatusReply)
	code := 200
	if reply.Status != "ok" {
		code = 503
	}
	return ctx.JSON(code, reply)
}

func RegisterStatusHTTPServer(s *http.Server, svc *StatusService) {
	s.Route("/").GET("/healthz", svc.Healthz)
}

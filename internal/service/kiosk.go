package service

import (
	"context"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/kiosk"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	// KioskDataCacheControl 边缘缓存 1 分钟，上游 5 分钟
	KioskDataCacheControl = "public, max-age=60, s-maxage=300"
	// LoadFailedMessage 聚合失败时响应体中的 error
	LoadFailedMessage = "Failed to load data"
)

// KioskService 聚合接口与终端查询接口。查询只读 Kiosk Data Cache。
type KioskService struct {
	snapshots *biz.SnapshotUsecase
	cache     *kiosk.Cache
	log       *log.Helper
}

func NewKioskService(snapshots *biz.SnapshotUsecase, cache *kiosk.Cache, logger log.Logger) *KioskService {
	return &KioskService{snapshots: snapshots, cache: cache, log: log.NewHelper(logger)}
}

type kioskDataError struct {
	Error       string     `json:"error"`
	Buildings   []struct{} `json:"buildings"`
	Connections []struct{} `json:"connections"`
	Timestamp   int64      `json:"timestamp"`
}

// KioskData GET /api/kiosk-data
func (s *KioskService) KioskData(ctx http.Context) error {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		s.log.WithContext(ctx).Errorf("load kiosk data: %v", err)
		return ctx.JSON(500, kioskDataError{
			Error:       LoadFailedMessage,
			Buildings:   []struct{}{},
			Connections: []struct{}{},
			Timestamp:   time.Now().UnixMilli(),
		})
	}
	ctx.Response().Header().Set("Cache-Control", KioskDataCacheControl)
	return ctx.JSON(200, snap)
}

// State GET /kiosk/state
func (s *KioskService) State(ctx http.Context) error {
	return ctx.JSON(200, s.cache.State())
}

// Refresh POST /kiosk/refresh，失败时返回 FETCH_FAILED，快照保持不变
func (s *KioskService) Refresh(ctx http.Context) error {
	out, err := invoke(ctx, "/kiosk/refresh", func(c context.Context) (any, error) {
		if err := s.cache.Refresh(c); err != nil {
			return nil, err
		}
		return s.cache.State(), nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(200, out)
}

// ClearError POST /kiosk/clear-error，关闭终端上的错误提示
func (s *KioskService) ClearError(ctx http.Context) error {
	out, err := invoke(ctx, "/kiosk/clear-error", func(context.Context) (any, error) {
		s.cache.ClearError()
		return s.cache.State(), nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(200, out)
}

func (s *KioskService) Buildings(ctx http.Context) error {
	st := s.cache.State()
	return ctx.JSON(200, map[string]any{"buildings": st.Buildings, "lastUpdated": st.LastUpdated})
}

func (s *KioskService) Building(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	b, ok := s.cache.GetBuilding(id)
	if !ok {
		return biz.NotFound(biz.KindBuilding, id)
	}
	return ctx.JSON(200, b)
}

type floorView struct {
	biz.FloorWithRooms
	Building    buildingRef      `json:"building"`
	Connections []biz.Connection `json:"connections"`
}

type buildingRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Floor 楼层详情，附带所属建筑和经过该楼层的通道
func (s *KioskService) Floor(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	f, ok := s.cache.GetFloor(id)
	if !ok {
		return biz.NotFound(biz.KindFloor, id)
	}
	b, ok := s.cache.FloorBuilding(id)
	if !ok {
		return biz.NotFound(biz.KindBuilding, f.BuildingID)
	}
	return ctx.JSON(200, floorView{
		FloorWithRooms: f,
		Building:       buildingRef{ID: b.ID, Name: b.Name},
		Connections:    s.cache.ConnectionsOf(id),
	})
}

func (s *KioskService) Room(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	r, ok := s.cache.GetRoom(id)
	if !ok {
		return biz.NotFound(biz.KindRoom, id)
	}
	return ctx.JSON(200, r)
}

// RegisterKioskHTTPServer 注册聚合接口与终端查询路由
func RegisterKioskHTTPServer(s *http.Server, svc *KioskService) {
	r := s.Route("/")
	r.GET("/api/kiosk-data", svc.KioskData)
	r.GET("/kiosk/state", svc.State)
	r.POST("/kiosk/refresh", svc.Refresh)
	r.POST("/kiosk/clear-error", svc.ClearError)
	r.GET("/kiosk/buildings", svc.Buildings)
	r.GET("/kiosk/buildings/{id}", svc.Building)
	r.GET("/kiosk/floors/{id}", svc.Floor)
	r.GET("/kiosk/rooms/{id}", svc.Room)
}

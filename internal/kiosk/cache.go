package kiosk

import (
	"context"
	"sync"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport"
)

// FetchFailedMessage 刷新失败时写入 State.Error 的提示
const FetchFailedMessage = "Failed to fetch data"

// DefaultRefreshInterval 定时刷新间隔
const DefaultRefreshInterval = 5 * time.Minute

var ErrFetchFailed = errors.New(502, biz.ReasonFetchFailed, FetchFailedMessage)

var _ transport.Server = (*Cache)(nil)

// Cache 终端数据缓存。Start 后立即刷新一次，之后按固定间隔刷新，Stop 时停止。
// 多个 Refresh 可以同时进行，最后返回的结果整体覆盖快照。
// 查询返回的值与快照共享底层切片，调用方不能修改。
type Cache struct {
	src      Source
	interval time.Duration
	metrics  *Metrics
	log      *log.Helper
	now      func() time.Time

	mu       sync.RWMutex
	state    State
	inflight int

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCache(src Source, interval time.Duration, m *Metrics, logger log.Logger) *Cache {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Cache{
		src:      src,
		interval: interval,
		metrics:  m,
		log:      log.NewHelper(log.With(logger, "module", "kiosk/cache")),
		now:      time.Now,
		state:    Initial(),
	}
}

// NewSource kiosk.snapshot_url 非空时走 HTTP，否则直接调用本进程的聚合用例
func NewSource(c *conf.Bootstrap, uc *biz.SnapshotUsecase) Source {
	if c.Kiosk.SnapshotURL != "" {
		return NewHTTPSource(c.Kiosk.SnapshotURL, c.Server.Http.Timeout.Duration)
	}
	return SourceFunc(uc.Snapshot)
}

// NewCacheFromConf wire 使用的构造函数
func NewCacheFromConf(src Source, c *conf.Bootstrap, m *Metrics, logger log.Logger) *Cache {
	return NewCache(src, c.Kiosk.RefreshInterval.Duration, m, logger)
}

// Start 启动后台刷新循环，立即返回
func (c *Cache) Start(context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
	c.log.Infof("kiosk cache started, refresh every %s", c.interval)
	return nil
}

// Stop 取消刷新循环并等待其退出
func (c *Cache) Stop(ctx context.Context) error {
	c.lifecycle.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.lifecycle.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		c.log.Info("kiosk cache stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	_ = c.Refresh(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Refresh 拉取完整快照。失败时保留原快照，只记录错误。
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.inflight++
	c.state = Reduce(c.state, SetLoading{Loading: true})
	c.mu.Unlock()

	start := time.Now()
	snap, err := c.src.Fetch(ctx)
	took := time.Since(start)
	if err == nil && snap == nil {
		snap = &biz.Snapshot{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	outcome := outcomeSuccess
	switch {
	case err != nil && ctx.Err() != nil:
		// 调用方已放弃（Stop 或请求断开），不算拉取失败
		outcome = outcomeCanceled
		c.state = Reduce(c.state, SetLoading{Loading: false})
		c.log.WithContext(ctx).Debugf("refresh abandoned after %s: %v", took, err)
	case err != nil:
		outcome = outcomeFailure
		c.state = Reduce(c.state, SetError{Message: FetchFailedMessage})
		c.log.WithContext(ctx).Warnf("refresh failed after %s: %v", took, err)
	default:
		c.state = Reduce(c.state, SetData{Buildings: snap.Buildings, Connections: snap.Connections, At: c.now()})
		c.log.WithContext(ctx).Debugf("refreshed %d buildings in %s", len(snap.Buildings), took)
	}
	if c.inflight > 0 {
		c.state = Reduce(c.state, SetLoading{Loading: true})
	}
	c.metrics.observe(outcome, took, len(c.state.Buildings))
	switch outcome {
	case outcomeCanceled:
		return ctx.Err()
	case outcomeFailure:
		return ErrFetchFailed.WithCause(err)
	}
	return nil
}

// Dispatch 应用一个状态变更
func (c *Cache) Dispatch(a Action) {
	c.mu.Lock()
	c.state = Reduce(c.state, a)
	n := len(c.state.Buildings)
	c.mu.Unlock()
	c.metrics.setBuildings(n)
}

func (c *Cache) AddBuilding(b biz.BuildingWithFloors) {
	c.Dispatch(AddBuilding{Building: b, At: c.now()})
}

func (c *Cache) ReplaceBuilding(b biz.BuildingWithFloors) {
	c.Dispatch(ReplaceBuilding{Building: b, At: c.now()})
}

func (c *Cache) RemoveBuilding(id string) {
	c.Dispatch(RemoveBuilding{ID: id, At: c.now()})
}

// ClearError 关闭错误提示，快照不变
func (c *Cache) ClearError() {
	c.Dispatch(ClearError{})
}

// State 当前状态
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Cache) GetBuilding(id string) (biz.BuildingWithFloors, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.state.Buildings {
		if b.ID == id {
			return b, true
		}
	}
	return biz.BuildingWithFloors{}, false
}

func (c *Cache) GetFloor(id string) (biz.FloorWithRooms, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.state.Buildings {
		for _, f := range b.Floors {
			if f.ID == id {
				return f, true
			}
		}
	}
	return biz.FloorWithRooms{}, false
}

func (c *Cache) GetRoom(id string) (biz.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.state.Buildings {
		for _, f := range b.Floors {
			for _, r := range f.Rooms {
				if r.ID == id {
					return r, true
				}
			}
		}
	}
	return biz.Room{}, false
}

// FloorBuilding 楼层所属的建筑
func (c *Cache) FloorBuilding(floorID string) (biz.BuildingWithFloors, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.state.Buildings {
		for _, f := range b.Floors {
			if f.ID == floorID {
				return b, true
			}
		}
	}
	return biz.BuildingWithFloors{}, false
}

// ConnectionsOf 连接到指定楼层的通道
func (c *Cache) ConnectionsOf(floorID string) []biz.Connection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]biz.Connection, 0)
	for _, conn := range c.state.Connections {
		if conn.Touches(floorID) {
			out = append(out, conn)
		}
	}
	return out
}

package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"
)

// FloorWithRooms 带房间的楼层
type FloorWithRooms struct {
	Floor
	Rooms []Room `json:"rooms"`
}

// BuildingWithFloors 带楼层树的建筑
type BuildingWithFloors struct {
	Building
	Floors []FloorWithRooms `json:"floors"`
}

// Snapshot 聚合快照：建筑 → 楼层 → 房间，外加启用的通道。Timestamp 为毫秒时间戳。
type Snapshot struct {
	Buildings   []BuildingWithFloors `json:"buildings"`
	Connections []Connection         `json:"connections"`
	Timestamp   int64                `json:"timestamp"`
}

// RoomCount 快照中的房间总数
func (s *Snapshot) RoomCount() int {
	n := 0
	for _, b := range s.Buildings {
		for _, f := range b.Floors {
			n += len(f.Rooms)
		}
	}
	return n
}

// SnapshotCache 服务端快照缓存
type SnapshotCache interface {
	Get(ctx context.Context) (*Snapshot, bool)
	Set(ctx context.Context, s *Snapshot) error
	Invalidate(ctx context.Context) error
}

// 单次聚合中并发查询的上限
const assembleParallelism = 8

// SnapshotUsecase 聚合读路径
type SnapshotUsecase struct {
	repo  FacilityRepo
	cache SnapshotCache
	log   *log.Helper
}

func NewSnapshotUsecase(repo FacilityRepo, cache SnapshotCache, logger log.Logger) *SnapshotUsecase {
	return &SnapshotUsecase{repo: repo, cache: cache, log: log.NewHelper(logger)}
}

// Snapshot 优先读缓存，未命中时聚合并写回
func (uc *SnapshotUsecase) Snapshot(ctx context.Context) (*Snapshot, error) {
	if uc.cache != nil {
		if s, ok := uc.cache.Get(ctx); ok {
			return s, nil
		}
	}
	s, err := uc.Assemble(ctx)
	if err != nil {
		return nil, err
	}
	if uc.cache != nil {
		if err := uc.cache.Set(ctx, s); err != nil {
			uc.log.WithContext(ctx).Warnf("snapshot cache set failed: %v", err)
		}
	}
	return s, nil
}

// Assemble 不经缓存直接聚合
func (uc *SnapshotUsecase) Assemble(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	var (
		tree  []BuildingWithFloors
		conns []*Connection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tree, err = uc.Tree(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		conns, err = uc.repo.ListActiveConnections(gctx)
		if err != nil {
			return fmt.Errorf("list connections: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s := &Snapshot{
		Buildings:   tree,
		Connections: make([]Connection, 0, len(conns)),
		Timestamp:   time.Now().UnixMilli(),
	}
	for _, c := range conns {
		s.Connections = append(s.Connections, *c)
	}
	uc.log.WithContext(ctx).Debugw("msg", "snapshot assembled",
		"buildings", len(s.Buildings), "rooms", s.RoomCount(), "took", time.Since(start).String())
	return s, nil
}

// Tree 全部建筑的嵌套树，不含通道
func (uc *SnapshotUsecase) Tree(ctx context.Context) ([]BuildingWithFloors, error) {
	buildings, err := uc.repo.ListBuildings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	out := make([]BuildingWithFloors, len(buildings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(assembleParallelism)
	for i, b := range buildings {
		g.Go(func() error {
			bw, err := assembleBuilding(gctx, uc.repo, b)
			if err != nil {
				return err
			}
			out[i] = *bw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func assembleBuilding(ctx context.Context, repo FacilityRepo, b *Building) (*BuildingWithFloors, error) {
	floors, err := repo.ListFloors(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list floors of %s: %w", b.ID, err)
	}
	bw := &BuildingWithFloors{Building: *b, Floors: make([]FloorWithRooms, len(floors))}
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range floors {
		g.Go(func() error {
			rooms, err := repo.ListRooms(gctx, f.ID)
			if err != nil {
				return fmt.Errorf("list rooms of %s: %w", f.ID, err)
			}
			fw := FloorWithRooms{Floor: *f, Rooms: make([]Room, 0, len(rooms))}
			for _, r := range rooms {
				fw.Rooms = append(fw.Rooms, *r)
			}
			bw.Floors[i] = fw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bw, nil
}

package data

import (
	"context"
	"sort"
	"sync"

	"kiosk-go/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// MemoryRepo 进程内存储，语义与关系型实现一致，进程重启后数据丢失。
// 读写都返回副本，调用方拿到的指针不会与存储共享。
type MemoryRepo struct {
	mu          sync.RWMutex
	buildings   map[string]*biz.Building
	floors      map[string]*biz.Floor
	rooms       map[string]*biz.Room
	connections map[string]*biz.Connection
	log         *log.Helper
}

var _ biz.FacilityRepo = (*MemoryRepo)(nil)

func NewMemoryRepo(logger log.Logger) *MemoryRepo {
	return &MemoryRepo{
		buildings:   make(map[string]*biz.Building),
		floors:      make(map[string]*biz.Floor),
		rooms:       make(map[string]*biz.Room),
		connections: make(map[string]*biz.Connection),
		log:         log.NewHelper(logger),
	}
}

func cloneRoom(r *biz.Room) *biz.Room {
	c := *r
	if r.PositionX != nil {
		x := *r.PositionX
		c.PositionX = &x
	}
	if r.PositionY != nil {
		y := *r.PositionY
		c.PositionY = &y
	}
	return &c
}

func (r *MemoryRepo) ListBuildings(ctx context.Context) ([]*biz.Building, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*biz.Building, 0, len(r.buildings))
	for _, b := range r.buildings {
		c := *b
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) GetBuilding(ctx context.Context, id string) (*biz.Building, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buildings[id]
	if !ok {
		return nil, biz.NotFound(biz.KindBuilding, id)
	}
	c := *b
	return &c, nil
}

func (r *MemoryRepo) CreateBuilding(ctx context.Context, b *biz.Building) (*biz.Building, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buildings[b.ID]; ok {
		return nil, biz.ErrConflict
	}
	stored := *b
	r.buildings[b.ID] = &stored
	out := stored
	return &out, nil
}

func (r *MemoryRepo) DeleteBuilding(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buildings[id]; !ok {
		return biz.NotFound(biz.KindBuilding, id)
	}
	var floors, rooms, conns int
	for fid, f := range r.floors {
		if f.BuildingID == id {
			nr, nc := r.deleteFloorLocked(fid)
			floors++
			rooms += nr
			conns += nc
		}
	}
	for cid, c := range r.connections {
		if c.Building1ID == id || c.Building2ID == id {
			delete(r.connections, cid)
			conns++
		}
	}
	delete(r.buildings, id)
	r.log.WithContext(ctx).Infof("building %s deleted: floors=%d rooms=%d connections=%d", id, floors, rooms, conns)
	return nil
}

func (r *MemoryRepo) ListFloors(ctx context.Context, buildingID string) ([]*biz.Floor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*biz.Floor, 0)
	for _, f := range r.floors {
		if f.BuildingID == buildingID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FloorNumber < out[j].FloorNumber })
	return out, nil
}

func (r *MemoryRepo) GetFloor(ctx context.Context, id string) (*biz.Floor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.floors[id]
	if !ok {
		return nil, biz.NotFound(biz.KindFloor, id)
	}
	c := *f
	return &c, nil
}

func (r *MemoryRepo) CreateFloor(ctx context.Context, f *biz.Floor) (*biz.Floor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.buildings[f.BuildingID]; !ok {
		return nil, biz.NotFound(biz.KindBuilding, f.BuildingID)
	}
	for _, existing := range r.floors {
		if existing.BuildingID == f.BuildingID && existing.FloorNumber == f.FloorNumber {
			return nil, biz.FloorConflict(f.BuildingID, f.FloorNumber)
		}
	}
	if _, ok := r.floors[f.ID]; ok {
		return nil, biz.ErrConflict
	}
	stored := *f
	r.floors[f.ID] = &stored
	out := stored
	return &out, nil
}

func (r *MemoryRepo) DeleteFloor(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.floors[id]; !ok {
		return biz.NotFound(biz.KindFloor, id)
	}
	rooms, conns := r.deleteFloorLocked(id)
	r.log.WithContext(ctx).Infof("floor %s deleted: rooms=%d connections=%d", id, rooms, conns)
	return nil
}

// deleteFloorLocked 返回连带删除的房间数与通道数
func (r *MemoryRepo) deleteFloorLocked(id string) (rooms, conns int) {
	for rid, room := range r.rooms {
		if room.FloorID == id {
			delete(r.rooms, rid)
			rooms++
		}
	}
	for cid, c := range r.connections {
		if c.Touches(id) {
			delete(r.connections, cid)
			conns++
		}
	}
	delete(r.floors, id)
	return rooms, conns
}

func (r *MemoryRepo) ListRooms(ctx context.Context, floorID string) ([]*biz.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*biz.Room, 0)
	for _, room := range r.rooms {
		if room.FloorID == floorID {
			out = append(out, cloneRoom(room))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) GetRoom(ctx context.Context, id string) (*biz.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, biz.NotFound(biz.KindRoom, id)
	}
	return cloneRoom(room), nil
}

func (r *MemoryRepo) CreateRoom(ctx context.Context, room *biz.Room) (*biz.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.floors[room.FloorID]; !ok {
		return nil, biz.NotFound(biz.KindFloor, room.FloorID)
	}
	if _, ok := r.rooms[room.ID]; ok {
		return nil, biz.ErrConflict
	}
	r.rooms[room.ID] = cloneRoom(room)
	return cloneRoom(room), nil
}

func (r *MemoryRepo) UpdateRoom(ctx context.Context, id string, u biz.RoomUpdate) (*biz.Room, error) {
	if u.Empty() {
		return nil, biz.ErrNoUpdates
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return nil, biz.NotFound(biz.KindRoom, id)
	}
	next := cloneRoom(room)
	if u.Name != nil {
		next.Name = *u.Name
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.ImageURL != nil {
		next.ImageURL = *u.ImageURL
	}
	next.UpdatedAt = u.UpdatedAt
	r.rooms[id] = next
	return cloneRoom(next), nil
}

func (r *MemoryRepo) DeleteRoom(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return biz.NotFound(biz.KindRoom, id)
	}
	delete(r.rooms, id)
	return nil
}

func (r *MemoryRepo) ListActiveConnections(ctx context.Context) ([]*biz.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*biz.Connection, 0)
	for _, c := range r.connections {
		if !c.IsActive {
			continue
		}
		b1, ok1 := r.buildings[c.Building1ID]
		b2, ok2 := r.buildings[c.Building2ID]
		f1, ok3 := r.floors[c.Floor1ID]
		f2, ok4 := r.floors[c.Floor2ID]
		// 与关系型实现的内连接一致：任一端缺失则不返回
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		v := *c
		v.Building1Name, v.Building2Name = b1.Name, b2.Name
		v.Floor1Name, v.Floor2Name = f1.Name, f2.Name
		out = append(out, &v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) CreateConnection(ctx context.Context, c *biz.Connection) (*biz.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range []string{c.Building1ID, c.Building2ID} {
		if _, ok := r.buildings[id]; !ok {
			return nil, biz.NotFound(biz.KindBuilding, id)
		}
	}
	for _, id := range []string{c.Floor1ID, c.Floor2ID} {
		if _, ok := r.floors[id]; !ok {
			return nil, biz.NotFound(biz.KindFloor, id)
		}
	}
	if _, ok := r.connections[c.ID]; ok {
		return nil, biz.ErrConflict
	}
	stored := *c
	stored.Building1Name, stored.Building2Name, stored.Floor1Name, stored.Floor2Name = "", "", "", ""
	r.connections[c.ID] = &stored
	out := stored
	return &out, nil
}

func (r *MemoryRepo) SetConnectionActive(ctx context.Context, id string, active bool) (*biz.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return nil, biz.NotFound(biz.KindConnection, id)
	}
	c.IsActive = active
	c.UpdatedAt = biz.Now()
	out := *c
	return &out, nil
}

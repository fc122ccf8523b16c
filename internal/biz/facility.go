package biz

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Building 建筑
type Building struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Floor 楼层，FloorNumber 在所属建筑内唯一
type Floor struct {
	ID          string    `json:"id"`
	BuildingID  string    `json:"building_id"`
	FloorNumber int       `json:"floor_number"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Room 房间；坐标只在创建时设置
type Room struct {
	ID          string    `json:"id"`
	FloorID     string    `json:"floor_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PositionX   *int      `json:"position_x,omitempty"`
	PositionY   *int      `json:"position_y,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Connection 两栋建筑之间的通道。名称字段只在列表查询时填充。
type Connection struct {
	ID            string    `json:"id"`
	Building1ID   string    `json:"building1_id"`
	Building2ID   string    `json:"building2_id"`
	Floor1ID      string    `json:"floor1_id"`
	Floor2ID      string    `json:"floor2_id"`
	Name          string    `json:"name"`
	IsActive      bool      `json:"is_active"`
	Building1Name string    `json:"building1_name,omitempty"`
	Building2Name string    `json:"building2_name,omitempty"`
	Floor1Name    string    `json:"floor1_name,omitempty"`
	Floor2Name    string    `json:"floor2_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Touches 通道是否连接到指定楼层
func (c *Connection) Touches(floorID string) bool {
	return c.Floor1ID == floorID || c.Floor2ID == floorID
}

// RoomUpdate 房间的部分更新，nil 表示不修改
type RoomUpdate struct {
	Name        *string
	Description *string
	ImageURL    *string
	UpdatedAt   time.Time
}

// Empty 没有任何可更新字段
func (u RoomUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.ImageURL == nil
}

// FacilityRepo 持久化网关。列表顺序：建筑按名称、楼层按楼层号、房间按名称。
type FacilityRepo interface {
	ListBuildings(ctx context.Context) ([]*Building, error)
	GetBuilding(ctx context.Context, id string) (*Building, error)
	CreateBuilding(ctx context.Context, b *Building) (*Building, error)
	// DeleteBuilding 级联删除楼层、房间以及引用它的通道
	DeleteBuilding(ctx context.Context, id string) error

	ListFloors(ctx context.Context, buildingID string) ([]*Floor, error)
	GetFloor(ctx context.Context, id string) (*Floor, error)
	CreateFloor(ctx context.Context, f *Floor) (*Floor, error)
	// DeleteFloor 级联删除房间以及引用它的通道
	DeleteFloor(ctx context.Context, id string) error

	ListRooms(ctx context.Context, floorID string) ([]*Room, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	CreateRoom(ctx context.Context, r *Room) (*Room, error)
	UpdateRoom(ctx context.Context, id string, u RoomUpdate) (*Room, error)
	DeleteRoom(ctx context.Context, id string) error

	// ListActiveConnections 只返回启用的通道，并带上两端的建筑/楼层名称
	ListActiveConnections(ctx context.Context) ([]*Connection, error)
	CreateConnection(ctx context.Context, c *Connection) (*Connection, error)
	SetConnectionActive(ctx context.Context, id string, active bool) (*Connection, error)
}

// FacilityUsecase 管理端写路径：校验、分配 ID 与时间戳、图片上传、缓存失效。
type FacilityUsecase struct {
	repo   FacilityRepo
	images *ImageUsecase
	cache  SnapshotCache
	log    *log.Helper
	now    func() time.Time
}

func NewFacilityUsecase(repo FacilityRepo, images *ImageUsecase, cache SnapshotCache, logger log.Logger) *FacilityUsecase {
	return &FacilityUsecase{
		repo:   repo,
		images: images,
		cache:  cache,
		log:    log.NewHelper(logger),
		now:    Now,
	}
}

// Now 毫秒精度的 UTC 时间，与存储精度一致
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newID() string {
	return uuid.NewString()
}

type BuildingInput struct {
	Name        string
	Description string
}

type FloorInput struct {
	BuildingID  string
	FloorNumber int
	Name        string
	Description string
}

type RoomInput struct {
	FloorID     string
	Name        string
	Description string
	PositionX   *int
	PositionY   *int
	Image       *Upload
}

// RoomPatch 管理端提交的房间修改，至少要有一个字段
type RoomPatch struct {
	Name        *string
	Description *string
	Image       *Upload
}

func (p RoomPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Image == nil
}

type ConnectionInput struct {
	Building1ID string
	Floor1ID    string
	Building2ID string
	Floor2ID    string
	Name        string
	IsActive    bool
}

func (uc *FacilityUsecase) ListBuildings(ctx context.Context) ([]*Building, error) {
	return uc.repo.ListBuildings(ctx)
}

func (uc *FacilityUsecase) GetBuilding(ctx context.Context, id string) (*Building, error) {
	return uc.repo.GetBuilding(ctx, id)
}

func (uc *FacilityUsecase) CreateBuilding(ctx context.Context, in BuildingInput) (*Building, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Required("name")
	}
	now := uc.now()
	b, err := uc.repo.CreateBuilding(ctx, &Building{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	uc.log.WithContext(ctx).Infof("building created id=%s name=%s", b.ID, b.Name)
	return b, nil
}

func (uc *FacilityUsecase) DeleteBuilding(ctx context.Context, id string) error {
	if id == "" {
		return Required("buildingId")
	}
	if err := uc.repo.DeleteBuilding(ctx, id); err != nil {
		return err
	}
	uc.invalidate(ctx)
	return nil
}

func (uc *FacilityUsecase) ListFloors(ctx context.Context, buildingID string) ([]*Floor, error) {
	return uc.repo.ListFloors(ctx, buildingID)
}

func (uc *FacilityUsecase) GetFloor(ctx context.Context, id string) (*Floor, error) {
	return uc.repo.GetFloor(ctx, id)
}

func (uc *FacilityUsecase) CreateFloor(ctx context.Context, in FloorInput) (*Floor, error) {
	if in.BuildingID == "" {
		return nil, Required("buildingId")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Required("name")
	}
	if _, err := uc.repo.GetBuilding(ctx, in.BuildingID); err != nil {
		return nil, err
	}
	now := uc.now()
	f, err := uc.repo.CreateFloor(ctx, &Floor{
		ID:          newID(),
		BuildingID:  in.BuildingID,
		FloorNumber: in.FloorNumber,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	return f, nil
}

// DeleteFloor 删除楼层及其房间，返回所属建筑 ID 以便刷新投影
func (uc *FacilityUsecase) DeleteFloor(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", Required("floorId")
	}
	f, err := uc.repo.GetFloor(ctx, id)
	if err != nil {
		return "", err
	}
	rooms, err := uc.repo.ListRooms(ctx, id)
	if err != nil {
		return "", err
	}
	if err := uc.repo.DeleteFloor(ctx, id); err != nil {
		return "", err
	}
	for _, r := range rooms {
		uc.dropImage(ctx, r.ImageURL)
	}
	uc.invalidate(ctx)
	return f.BuildingID, nil
}

func (uc *FacilityUsecase) ListRooms(ctx context.Context, floorID string) ([]*Room, error) {
	return uc.repo.ListRooms(ctx, floorID)
}

func (uc *FacilityUsecase) GetRoom(ctx context.Context, id string) (*Room, error) {
	return uc.repo.GetRoom(ctx, id)
}

func (uc *FacilityUsecase) CreateRoom(ctx context.Context, in RoomInput) (*Room, error) {
	if in.FloorID == "" {
		return nil, Required("floorId")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Required("name")
	}
	// 图片校验先于任何写操作
	if in.Image != nil {
		if err := ValidateImage(in.Image); err != nil {
			return nil, err
		}
	}
	if _, err := uc.repo.GetFloor(ctx, in.FloorID); err != nil {
		return nil, err
	}
	now := uc.now()
	room := &Room{
		ID:          newID(),
		FloorID:     in.FloorID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		PositionX:   in.PositionX,
		PositionY:   in.PositionY,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Image != nil {
		url, err := uc.images.Upload(ctx, room.ID, in.Image)
		if err != nil {
			return nil, err
		}
		room.ImageURL = url
	}
	created, err := uc.repo.CreateRoom(ctx, room)
	if err != nil {
		uc.dropImage(ctx, room.ImageURL)
		return nil, err
	}
	uc.invalidate(ctx)
	return created, nil
}

// UpdateRoom 只修改提供的字段和 updated_at；新图片上传成功后旧图片尽力删除
func (uc *FacilityUsecase) UpdateRoom(ctx context.Context, id string, p RoomPatch) (*Room, error) {
	if id == "" {
		return nil, Required("roomId")
	}
	if p.Empty() {
		return nil, ErrNoUpdates
	}
	if p.Image != nil {
		if err := ValidateImage(p.Image); err != nil {
			return nil, err
		}
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, Required("name")
	}
	old, err := uc.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	u := RoomUpdate{Name: p.Name, Description: p.Description, UpdatedAt: uc.now()}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if p.Image != nil {
		url, err := uc.images.Upload(ctx, id, p.Image)
		if err != nil {
			return nil, err
		}
		u.ImageURL = &url
	}
	room, err := uc.repo.UpdateRoom(ctx, id, u)
	if err != nil {
		if u.ImageURL != nil {
			uc.dropImage(ctx, *u.ImageURL)
		}
		return nil, err
	}
	if u.ImageURL != nil && old.ImageURL != "" && old.ImageURL != *u.ImageURL {
		uc.dropImage(ctx, old.ImageURL)
	}
	uc.invalidate(ctx)
	return room, nil
}

// DeleteRoom 返回被删除的房间
func (uc *FacilityUsecase) DeleteRoom(ctx context.Context, id string) (*Room, error) {
	if id == "" {
		return nil, Required("roomId")
	}
	r, err := uc.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.DeleteRoom(ctx, id); err != nil {
		return nil, err
	}
	uc.dropImage(ctx, r.ImageURL)
	uc.invalidate(ctx)
	return r, nil
}

func (uc *FacilityUsecase) ListConnections(ctx context.Context) ([]*Connection, error) {
	return uc.repo.ListActiveConnections(ctx)
}

// CreateConnection 两端楼层必须存在且属于给定建筑
func (uc *FacilityUsecase) CreateConnection(ctx context.Context, in ConnectionInput) (*Connection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, Required("name")
	}
	ends := make([]*Floor, 0, 2)
	for _, end := range []struct{ field, building, floor string }{
		{"floor1Id", in.Building1ID, in.Floor1ID},
		{"floor2Id", in.Building2ID, in.Floor2ID},
	} {
		if end.floor == "" {
			return nil, Required(end.field)
		}
		f, err := uc.repo.GetFloor(ctx, end.floor)
		if err != nil {
			return nil, err
		}
		if end.building != "" && f.BuildingID != end.building {
			return nil, Invalid(end.field)
		}
		ends = append(ends, f)
	}
	f1, f2 := ends[0], ends[1]
	now := uc.now()
	c, err := uc.repo.CreateConnection(ctx, &Connection{
		ID:          newID(),
		Building1ID: f1.BuildingID,
		Building2ID: f2.BuildingID,
		Floor1ID:    f1.ID,
		Floor2ID:    f2.ID,
		Name:        name,
		IsActive:    in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	return c, nil
}

func (uc *FacilityUsecase) SetConnectionActive(ctx context.Context, id string, active bool) (*Connection, error) {
	if id == "" {
		return nil, Required("connectionId")
	}
	c, err := uc.repo.SetConnectionActive(ctx, id, active)
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx)
	return c, nil
}

// BuildingTree 单栋建筑的完整子树
func (uc *FacilityUsecase) BuildingTree(ctx context.Context, id string) (*BuildingWithFloors, error) {
	b, err := uc.repo.GetBuilding(ctx, id)
	if err != nil {
		return nil, err
	}
	return assembleBuilding(ctx, uc.repo, b)
}

func (uc *FacilityUsecase) invalidate(ctx context.Context) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx); err != nil {
		uc.log.WithContext(ctx).Warnf("snapshot cache invalidate failed: %v", err)
	}
}

func (uc *FacilityUsecase) dropImage(ctx context.Context, url string) {
	if url == "" || uc.images == nil {
		return
	}
	if err := uc.images.Delete(ctx, url); err != nil {
		uc.log.WithContext(ctx).Warnf("delete image %s failed: %v", url, err)
	}
}

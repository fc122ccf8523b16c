package biz_test

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/blob"
	"kiosk-go/internal/data"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clock = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *data.MemoryRepo
	blobs  *blob.Memory
	cache  *countingCache
	uc     *biz.FacilityUsecase
	images *biz.ImageUsecase
	snap   *biz.SnapshotUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  data.NewMemoryRepo(log.DefaultLogger),
		blobs: blob.NewMemory("/images"),
		cache: &countingCache{},
	}
	f.images = biz.NewImageUsecase(data.NewImageStore(f.blobs, log.DefaultLogger), log.DefaultLogger)
	f.uc = biz.NewFacilityUsecase(f.repo, f.images, f.cache, log.DefaultLogger)
	f.uc.SetClock(func() time.Time { return clock })
	f.snap = biz.NewSnapshotUsecase(f.repo, f.cache, log.DefaultLogger)
	return f
}

// countingCache 记录失效次数的快照缓存
type countingCache struct {
	snap        *biz.Snapshot
	sets        int
	invalidated int
}

func (c *countingCache) Get(context.Context) (*biz.Snapshot, bool) { return c.snap, c.snap != nil }

func (c *countingCache) Set(_ context.Context, s *biz.Snapshot) error {
	c.sets++
	c.snap = s
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.invalidated++
	c.snap = nil
	return nil
}

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, "\x89PNG\r\n\x1a\n")
	return b
}

func (f *fixture) building(t *testing.T, name string) *biz.Building {
	t.Helper()
	b, err := f.uc.CreateBuilding(context.Background(), biz.BuildingInput{Name: name})
	require.NoError(t, err)
	return b
}

func (f *fixture) floor(t *testing.T, buildingID string, number int) *biz.Floor {
	t.Helper()
	fl, err := f.uc.CreateFloor(context.Background(), biz.FloorInput{
		BuildingID: buildingID, FloorNumber: number, Name: fmt.Sprintf("%d층", number),
	})
	require.NoError(t, err)
	return fl
}

func TestSeedScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.uc.Seed(ctx)
	require.NoError(t, err)
	require.Len(t, created, 2)

	s, err := f.snap.Assemble(ctx)
	require.NoError(t, err)
	require.Len(t, s.Buildings, 2)
	assert.Equal(t, 18, s.RoomCount())

	floorsByName := map[string]int{}
	for _, b := range s.Buildings {
		floorsByName[b.Name] = len(b.Floors)
		for i, fl := range b.Floors {
			assert.Equal(t, i+1, fl.FloorNumber)
			assert.Equal(t, b.ID, fl.BuildingID)
			for _, r := range fl.Rooms {
				assert.Equal(t, fl.ID, r.FloorID)
				got, err := f.uc.GetRoom(ctx, r.ID)
				require.NoError(t, err)
				assert.Equal(t, fl.ID, got.FloorID)
			}
		}
	}
	assert.Equal(t, map[string]int{"동행관": 4, "소통관": 2}, floorsByName)

	// 重复执行跳过已存在的建筑
	again, err := f.uc.Seed(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
	s, err = f.snap.Assemble(ctx)
	require.NoError(t, err)
	assert.Equal(t, 18, s.RoomCount())
}

func TestUpdateRoomNameOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)
	room, err := f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: fl.ID, Name: "로비", Description: "메인 로비"})
	require.NoError(t, err)

	later := clock.Add(time.Hour)
	f.uc.SetClock(func() time.Time { return later })
	name := "New Name"
	updated, err := f.uc.UpdateRoom(ctx, room.ID, biz.RoomPatch{Name: &name})
	require.NoError(t, err)

	want := *room
	want.Name = "New Name"
	want.UpdatedAt = later
	assert.Equal(t, want, *updated)
}

func TestUpdateRoomEmptyPatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)
	room, err := f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: fl.ID, Name: "로비"})
	require.NoError(t, err)
	before := f.cache.invalidated

	_, err = f.uc.UpdateRoom(ctx, room.ID, biz.RoomPatch{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, biz.ErrNoUpdates))
	assert.Equal(t, 400, errors.Code(err))

	stored, err := f.uc.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, *room, *stored)
	assert.Equal(t, before, f.cache.invalidated)
}

func TestUpdateRoomMissing(t *testing.T) {
	f := newFixture(t)
	name := "x"
	_, err := f.uc.UpdateRoom(context.Background(), "missing", biz.RoomPatch{Name: &name})
	assert.Equal(t, biz.ReasonNotFound, errors.Reason(err))
}

func TestImageTooLargeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)

	big := &biz.Upload{Filename: "photo.jpg", ContentType: "image/jpeg", Body: make([]byte, 8<<20)}
	url, err := f.images.Upload(ctx, "r1", big)
	assert.Empty(t, url)
	assert.True(t, errors.Is(err, biz.ErrImageTooLarge))

	_, err = f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: fl.ID, Name: "로비", Image: big})
	assert.True(t, errors.Is(err, biz.ErrImageTooLarge))
	assert.Equal(t, 0, f.blobs.Len())

	rooms, err := f.uc.ListRooms(ctx, fl.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestImageTypeCheckedBeforeSize(t *testing.T) {
	big := &biz.Upload{Filename: "anim.gif", ContentType: "image/gif", Body: make([]byte, 8<<20)}
	assert.True(t, errors.Is(biz.ValidateImage(big), biz.ErrImageUnsupported))

	sniffed := &biz.Upload{Filename: "blob", Body: pngBytes(64)}
	assert.NoError(t, biz.ValidateImage(sniffed))
}

func TestImageUploadPNG(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)

	upload := &biz.Upload{Filename: "map.png", ContentType: "image/png", Body: pngBytes(2 << 20)}
	url, err := f.images.Upload(ctx, "r1", upload)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`/kiosk-images/room-r1-\d+\.png$`), url)

	room, err := f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: fl.ID, Name: "로비", Image: upload})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("/images/kiosk-images/room-%s-%d.png", room.ID, clock.UnixMilli()), room.ImageURL)
	assert.Equal(t, 2, f.blobs.Len())
}

func TestUpdateRoomReplacesImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)
	room, err := f.uc.CreateRoom(ctx, biz.RoomInput{
		FloorID: fl.ID, Name: "로비",
		Image: &biz.Upload{Filename: "a.png", ContentType: "image/png", Body: pngBytes(128)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.blobs.Len())

	f.uc.SetClock(func() time.Time { return clock.Add(time.Minute) })
	updated, err := f.uc.UpdateRoom(ctx, room.ID, biz.RoomPatch{
		Image: &biz.Upload{Filename: "b.webp", ContentType: "image/webp", Body: []byte("RIFF....WEBP")},
	})
	require.NoError(t, err)
	assert.NotEqual(t, room.ImageURL, updated.ImageURL)
	assert.Contains(t, updated.ImageURL, ".webp")
	assert.Equal(t, 1, f.blobs.Len())

	_, _, err = f.blobs.Get(ctx, "kiosk-images/"+fmt.Sprintf("room-%s-%d.png", room.ID, clock.UnixMilli()))
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestFloorNumberCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	f.floor(t, b.ID, 1)

	_, err := f.uc.CreateFloor(ctx, biz.FloorInput{BuildingID: b.ID, FloorNumber: 1, Name: "중복"})
	assert.Equal(t, biz.ReasonConflict, errors.Reason(err))

	floors, err := f.uc.ListFloors(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, floors, 1)

	_, err = f.uc.CreateFloor(ctx, biz.FloorInput{BuildingID: "missing", FloorNumber: 1, Name: "1층"})
	assert.Equal(t, biz.ReasonNotFound, errors.Reason(err))
}

func TestDeleteFloorCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	f1 := f.floor(t, b.ID, 1)
	f2 := f.floor(t, b.ID, 2)
	_, err := f.uc.CreateRoom(ctx, biz.RoomInput{
		FloorID: f1.ID, Name: "로비",
		Image: &biz.Upload{Filename: "a.png", ContentType: "image/png", Body: pngBytes(32)},
	})
	require.NoError(t, err)
	_, err = f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: f1.ID, Name: "카페동행"})
	require.NoError(t, err)
	other, err := f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: f2.ID, Name: "회의실"})
	require.NoError(t, err)

	buildingID, err := f.uc.DeleteFloor(ctx, f1.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, buildingID)
	assert.Equal(t, 0, f.blobs.Len())

	rooms, err := f.uc.ListRooms(ctx, f1.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
	kept, err := f.uc.GetRoom(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "회의실", kept.Name)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.CreateBuilding(ctx, biz.BuildingInput{Name: "  "})
	assert.Equal(t, biz.ReasonValidation, errors.Reason(err))
	assert.Equal(t, "name", errors.FromError(err).Metadata["field"])

	_, err = f.uc.CreateFloor(ctx, biz.FloorInput{Name: "1층"})
	assert.Equal(t, biz.ReasonValidation, errors.Reason(err))

	_, err = f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: "f", Name: ""})
	assert.Equal(t, biz.ReasonValidation, errors.Reason(err))

	_, err = f.uc.DeleteRoom(ctx, "")
	assert.Equal(t, biz.ReasonValidation, errors.Reason(err))
}

func TestCreateConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b1 := f.building(t, "동행관")
	b2 := f.building(t, "소통관")
	f1 := f.floor(t, b1.ID, 2)
	f2 := f.floor(t, b2.ID, 2)

	_, err := f.uc.CreateConnection(ctx, biz.ConnectionInput{
		Building1ID: b2.ID, Floor1ID: f1.ID, Building2ID: b2.ID, Floor2ID: f2.ID, Name: "통로",
	})
	assert.Equal(t, biz.ReasonValidation, errors.Reason(err))

	c, err := f.uc.CreateConnection(ctx, biz.ConnectionInput{
		Floor1ID: f1.ID, Floor2ID: f2.ID, Name: "2층 연결통로", IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, b1.ID, c.Building1ID)
	assert.Equal(t, b2.ID, c.Building2ID)

	conns, err := f.uc.ListConnections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "동행관", conns[0].Building1Name)

	_, err = f.uc.SetConnectionActive(ctx, c.ID, false)
	require.NoError(t, err)
	conns, err = f.uc.ListConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestSnapshotCacheThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")

	s1, err := f.snap.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.sets)
	s2, err := f.snap.Snapshot(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, f.cache.sets)

	// 写操作使缓存失效
	f.floor(t, b.ID, 1)
	s3, err := f.snap.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.sets)
	require.Len(t, s3.Buildings, 1)
	assert.Len(t, s3.Buildings[0].Floors, 1)
	assert.NotNil(t, s3.Connections)
}

func TestBuildingTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.building(t, "동행관")
	fl := f.floor(t, b.ID, 1)
	_, err := f.uc.CreateRoom(ctx, biz.RoomInput{FloorID: fl.ID, Name: "로비"})
	require.NoError(t, err)

	tree, err := f.uc.BuildingTree(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, tree.Floors, 1)
	require.Len(t, tree.Floors[0].Rooms, 1)
	assert.Equal(t, "로비", tree.Floors[0].Rooms[0].Name)

	_, err = f.uc.BuildingTree(ctx, "missing")
	assert.Equal(t, biz.ReasonNotFound, errors.Reason(err))
}

func TestImageFilename(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "room-r1-1700000000123.jpeg",
		biz.ImageFilename(&biz.Upload{Filename: "Photo.JPEG", ContentType: "image/jpeg"}, "r1", at))
	assert.Equal(t, "room-r1-1700000000123.webp",
		biz.ImageFilename(&biz.Upload{ContentType: "image/webp"}, "r1", at))
	assert.Equal(t, "room-r1-1700000000123.png",
		biz.ImageFilename(&biz.Upload{Filename: "noext", ContentType: "image/png"}, "r1", at))
}

package kiosk

import (
	"testing"
	"time"

	"kiosk-go/internal/biz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func building(id, name string, floors ...biz.FloorWithRooms) biz.BuildingWithFloors {
	return biz.BuildingWithFloors{Building: biz.Building{ID: id, Name: name}, Floors: floors}
}

func floor(id, buildingID string, number int, rooms ...biz.Room) biz.FloorWithRooms {
	return biz.FloorWithRooms{Floor: biz.Floor{ID: id, BuildingID: buildingID, FloorNumber: number}, Rooms: rooms}
}

func room(id, floorID, name string) biz.Room {
	return biz.Room{ID: id, FloorID: floorID, Name: name}
}

func TestInitialState(t *testing.T) {
	s := Initial()
	assert.Empty(t, s.Buildings)
	assert.NotNil(t, s.Buildings)
	assert.NotNil(t, s.Connections)
	assert.False(t, s.IsLoading)
	assert.Empty(t, s.Error)
	assert.True(t, s.LastUpdated.IsZero())
}

func TestReduceSetDataClearsError(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	s := Reduce(Initial(), SetLoading{Loading: true})
	s = Reduce(s, SetError{Message: FetchFailedMessage})
	assert.False(t, s.IsLoading)
	assert.Equal(t, FetchFailedMessage, s.Error)

	s = Reduce(s, SetData{Buildings: []biz.BuildingWithFloors{building("b1", "동행관")}, At: at})
	assert.Empty(t, s.Error)
	assert.False(t, s.IsLoading)
	assert.Equal(t, at, s.LastUpdated)
	require.Len(t, s.Buildings, 1)
	assert.NotNil(t, s.Connections)

	s = Reduce(s, SetError{Message: "x"})
	s = Reduce(s, ClearError{})
	assert.Empty(t, s.Error)
	assert.Len(t, s.Buildings, 1)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	base := Reduce(Initial(), SetData{Buildings: []biz.BuildingWithFloors{
		building("b1", "동행관"), building("b2", "소통관"),
	}})
	snapshot := append([]biz.BuildingWithFloors(nil), base.Buildings...)

	t1 := time.UnixMilli(1)
	replaced := Reduce(base, ReplaceBuilding{Building: building("b1", "동행관 신관"), At: t1})
	removed := Reduce(base, RemoveBuilding{ID: "b2", At: t1})
	added := Reduce(base, AddBuilding{Building: building("b3", "별관"), At: t1})

	assert.Equal(t, snapshot, base.Buildings)
	assert.Equal(t, "동행관 신관", replaced.Buildings[0].Name)
	assert.Len(t, removed.Buildings, 1)
	assert.Equal(t, "b1", removed.Buildings[0].ID)
	require.Len(t, added.Buildings, 3)
	assert.Equal(t, "b3", added.Buildings[2].ID)
	for _, s := range []State{replaced, removed, added} {
		assert.Equal(t, t1, s.LastUpdated)
	}
}

func TestReduceReplaceUnknownID(t *testing.T) {
	base := Reduce(Initial(), SetData{Buildings: []biz.BuildingWithFloors{building("b1", "동행관")}})
	s := Reduce(base, ReplaceBuilding{Building: building("nope", "x")})
	require.Len(t, s.Buildings, 1)
	assert.Equal(t, "동행관", s.Buildings[0].Name)
}

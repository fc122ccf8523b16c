package service

import (
	"bytes"
	"testing"

	"kiosk-go/internal/biz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBuildDirectory(t *testing.T) {
	x := 10
	snap := &biz.Snapshot{
		Buildings: []biz.BuildingWithFloors{{
			Building: biz.Building{ID: "b1", Name: "동행관"},
			Floors: []biz.FloorWithRooms{{
				Floor: biz.Floor{ID: "f1", BuildingID: "b1", FloorNumber: 1, Name: "1층"},
				Rooms: []biz.Room{
					{ID: "r1", FloorID: "f1", Name: "로비", Description: "메인 로비", PositionX: &x},
					{ID: "r2", FloorID: "f1", Name: "카페동행", ImageURL: "/images/kiosk-images/room-r2-1.png"},
				},
			}},
		}},
		Connections: []biz.Connection{{
			ID: "c1", Name: "연결통로", IsActive: true,
			Building1Name: "동행관", Floor1Name: "1층", Building2Name: "소통관", Floor2Name: "1층",
		}},
	}

	f, err := BuildDirectory(snap)
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	wb, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{RoomSheet, ConnectionSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(RoomSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "건물", rows[0][0])
	assert.Equal(t, []string{"동행관", "1", "1층", "로비", "메인 로비"}, rows[1][:5])
	assert.Equal(t, "10", rows[1][6])
	assert.Equal(t, "/images/kiosk-images/room-r2-1.png", rows[2][5])

	rows, err = wb.GetRows(ConnectionSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"연결통로", "동행관", "1층", "소통관", "1층", "TRUE"}, rows[1])
}

func TestBuildDirectoryEmpty(t *testing.T) {
	f, err := BuildDirectory(&biz.Snapshot{})
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(RoomSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

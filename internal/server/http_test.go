package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"
	"kiosk-go/internal/data"
	"kiosk-go/internal/kiosk"
	"kiosk-go/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type testServer struct {
	srv   *khttp.Server
	cache *kiosk.Cache
}

func newTestServer(t *testing.T, rps float64) *testServer {
	t.Helper()
	return newTestServerWith(t, rps, nil)
}

// failingRepo 列表查询总是失败，其余方法不会被调用
type failingRepo struct {
	biz.FacilityRepo
}

func (failingRepo) ListBuildings(context.Context) ([]*biz.Building, error) {
	return nil, fmt.Errorf("connection refused")
}

func newTestServerWith(t *testing.T, rps float64, repo biz.FacilityRepo) *testServer {
	t.Helper()
	bc := conf.Default()
	bc.Server.Http.Addr = "127.0.0.1:0"
	bc.Server.AdminRPS = rps
	logger := log.DefaultLogger

	d, cleanup, err := data.NewData(&bc.Data, nil, logger)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	sc, cleanupCache, err := data.NewSnapshotCache(d, bc, logger)
	require.NoError(t, err)
	t.Cleanup(cleanupCache)
	store, err := data.NewBlobStore(&bc.Data, logger)
	require.NoError(t, err)

	if repo == nil {
		repo = data.NewFacilityRepo(d, logger)
	}
	images := biz.NewImageUsecase(data.NewImageStore(store, logger), logger)
	facility := biz.NewFacilityUsecase(repo, images, sc, logger)
	snapshots := biz.NewSnapshotUsecase(repo, sc, logger)
	cache := kiosk.NewCache(kiosk.SourceFunc(snapshots.Snapshot), time.Minute, kiosk.NewMetrics(prometheus.NewRegistry()), logger)

	srv := NewHTTPServer(bc, Services{
		Kiosk:  service.NewKioskService(snapshots, cache, logger),
		Admin:  service.NewAdminService(facility, snapshots, cache, logger),
		Export: service.NewExportService(snapshots, logger),
		Images: service.NewImageService(store, logger),
		Status: service.NewStatusService(d, cache),
	}, logger)
	return &testServer{srv: srv, cache: cache}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.srv.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) action(t *testing.T, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/admin", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) multipartAction(t *testing.T, fields map[string]string, filename string, file []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/admin", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func entityID(t *testing.T, rec *httptest.ResponseRecorder, key string) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	entity, ok := out[key].(map[string]any)
	require.True(t, ok, "missing %s in %s", key, rec.Body.String())
	return entity["id"].(string)
}

func TestSeedAndKioskData(t *testing.T) {
	s := newTestServer(t, 1000)

	rec := s.action(t, url.Values{"action": {"seedDatabase"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, biz.SeedMessage, out["message"])

	rec = s.get(t, "/api/kiosk-data")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.KioskDataCacheControl, rec.Header().Get("Cache-Control"))
	var snap biz.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Buildings, 2)
	assert.Equal(t, "동행관", snap.Buildings[0].Name)
	assert.Len(t, snap.Buildings[0].Floors, 4)
	assert.Equal(t, 18, snap.RoomCount())
	assert.NotNil(t, snap.Connections)
	assert.NotZero(t, snap.Timestamp)

	// 写入已投影到终端缓存
	st := s.cache.State()
	require.Len(t, st.Buildings, 2)

	rec = s.get(t, "/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode(t, rec)["buildings"].([]any)
	assert.Len(t, tree, 2)
}

func TestAdminProjectsIntoKioskCache(t *testing.T) {
	s := newTestServer(t, 1000)

	bid := entityID(t, s.action(t, url.Values{"action": {"createBuilding"}, "name": {"별관"}, "description": {"새 건물"}}), "building")
	rec := s.get(t, "/kiosk/buildings/"+bid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "별관", decode(t, rec)["name"])

	fid := entityID(t, s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"1"}, "name": {"1층"}}), "floor")
	rid := entityID(t, s.action(t, url.Values{
		"action": {"createRoom"}, "floorId": {fid}, "name": {"창고"}, "positionX": {"120"}, "positionY": {"40"},
	}), "room")

	rec = s.get(t, "/kiosk/rooms/" + rid)
	require.Equal(t, http.StatusOK, rec.Code)
	room := decode(t, rec)
	assert.Equal(t, "창고", room["name"])
	assert.Equal(t, float64(120), room["position_x"])

	rec = s.get(t, "/kiosk/floors/" + fid)
	require.Equal(t, http.StatusOK, rec.Code)
	fl := decode(t, rec)
	assert.Equal(t, "별관", fl["building"].(map[string]any)["name"])
	assert.Len(t, fl["rooms"], 1)

	// 空字符串不算修改
	rec = s.action(t, url.Values{"action": {"updateRoom"}, "roomId": {rid}, "name": {""}, "description": {""}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "수정할 항목이 없습니다.", decode(t, rec)["error"])

	entityID(t, s.action(t, url.Values{"action": {"updateRoom"}, "roomId": {rid}, "name": {"자료실"}}), "room")
	rec = s.get(t, "/kiosk/rooms/" + rid)
	assert.Equal(t, "자료실", decode(t, rec)["name"])

	rec = s.action(t, url.Values{"action": {"deleteRoom"}, "roomId": {rid}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true}, decode(t, rec))
	assert.Equal(t, http.StatusNotFound, s.get(t, "/kiosk/rooms/"+rid).Code)

	rec = s.action(t, url.Values{"action": {"deleteBuilding"}, "buildingId": {bid}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.get(t, "/kiosk/buildings/"+bid).Code)
}

func TestAdminErrors(t *testing.T) {
	s := newTestServer(t, 1000)

	rec := s.action(t, url.Values{"action": {"dropEverything"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", decode(t, rec)["error"])

	rec = s.action(t, url.Values{"action": {"createBuilding"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name 항목은 필수입니다.", decode(t, rec)["error"])

	bid := entityID(t, s.action(t, url.Values{"action": {"createBuilding"}, "name": {"동행관"}}), "building")
	entityID(t, s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"2"}, "name": {"2층"}}), "floor")

	rec = s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"2"}, "name": {"다시 2층"}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "이 건물에는 이미 2층이 있습니다.", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodPost, "/admin?lang=en", strings.NewReader(url.Values{
		"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"2"}, "name": {"again"},
	}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = s.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Floor 2 already exists in this building.", decode(t, rec)["error"])

	rec = s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"two"}, "name": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.action(t, url.Values{"action": {"deleteRoom"}, "roomId": {"missing"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminImageUpload(t *testing.T) {
	s := newTestServer(t, 1000)
	bid := entityID(t, s.action(t, url.Values{"action": {"createBuilding"}, "name": {"소통관"}}), "building")
	fid := entityID(t, s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {bid}, "floorNumber": {"1"}, "name": {"1층"}}), "floor")

	rec := s.multipartAction(t, map[string]string{"action": "createRoom", "floorId": fid, "name": "갤러리"}, "notes.txt", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, biz.ErrImageUnsupported.Message, decode(t, rec)["error"])

	png := make([]byte, 2048)
	copy(png, "\x89PNG\r\n\x1a\n")
	rec = s.multipartAction(t, map[string]string{"action": "createRoom", "floorId": fid, "name": "갤러리"}, "gallery.png", png)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	room := decode(t, rec)["room"].(map[string]any)
	imageURL := room["image_url"].(string)
	require.True(t, strings.HasPrefix(imageURL, "/images/"+biz.ImagePrefix), imageURL)

	rec = s.get(t, imageURL)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, service.ImageCacheControl, rec.Header().Get("Cache-Control"))
	assert.Equal(t, png, rec.Body.Bytes())

	// 空文件视为未上传
	rec = s.multipartAction(t, map[string]string{"action": "updateRoom", "roomId": room["id"].(string), "description": "전시"}, "empty.png", []byte{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, imageURL, decode(t, rec)["room"].(map[string]any)["image_url"])

	assert.Equal(t, http.StatusNotFound, s.get(t, "/images/"+biz.ImagePrefix+"missing.png").Code)
}

func TestConnectionsRefreshCache(t *testing.T) {
	s := newTestServer(t, 1000)
	b1 := entityID(t, s.action(t, url.Values{"action": {"createBuilding"}, "name": {"동행관"}}), "building")
	b2 := entityID(t, s.action(t, url.Values{"action": {"createBuilding"}, "name": {"소통관"}}), "building")
	f1 := entityID(t, s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {b1}, "floorNumber": {"2"}, "name": {"2층"}}), "floor")
	f2 := entityID(t, s.action(t, url.Values{"action": {"createFloor"}, "buildingId": {b2}, "floorNumber": {"2"}, "name": {"2층"}}), "floor")

	cid := entityID(t, s.action(t, url.Values{
		"action": {"createConnection"}, "name": {"2층 연결통로"},
		"building1Id": {b1}, "floor1Id": {f1}, "building2Id": {b2}, "floor2Id": {f2},
	}), "connection")

	rec := s.get(t, "/kiosk/floors/" + f1)
	require.Equal(t, http.StatusOK, rec.Code)
	conns := decode(t, rec)["connections"].([]any)
	require.Len(t, conns, 1)
	assert.Equal(t, "소통관", conns[0].(map[string]any)["building2_name"])

	rec = s.action(t, url.Values{"action": {"setConnectionActive"}, "connectionId": {cid}, "isActive": {"false"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.cache.ConnectionsOf(f1))

	rec = s.action(t, url.Values{"action": {"deleteFloor"}, "floorId": {f2}})
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := s.cache.GetFloor(f2)
	assert.False(t, ok)
}

func TestKioskLookupsAndRefresh(t *testing.T) {
	s := newTestServer(t, 1000)

	rec := s.get(t, "/kiosk/state")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.Equal(t, false, st["isLoading"])
	assert.Empty(t, st["buildings"])

	s.action(t, url.Values{"action": {"seedDatabase"}})
	rec = s.do(httptest.NewRequest(http.MethodPost, "/kiosk/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["buildings"], 2)

	rec = s.get(t, "/kiosk/buildings")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["buildings"], 2)

	rec = s.get(t, "/kiosk/rooms/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "방을(를) 찾을 수 없습니다.", decode(t, rec)["error"])

	req := httptest.NewRequest(http.MethodGet, "/kiosk/floors/missing", nil)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	rec = s.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Floor not found.", decode(t, rec)["error"])
}

func TestExportWorkbook(t *testing.T) {
	s := newTestServer(t, 1000)
	s.action(t, url.Values{"action": {"seedDatabase"}})

	rec := s.get(t, "/admin/export.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "kiosk-directory-")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(service.RoomSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 19)
}

func TestAdminRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, s.get(t, "/admin").Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	rec := s.get(t, "/admin")
	assert.Equal(t, "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.", decode(t, rec)["error"])

	// 终端接口不限流
	for range 5 {
		assert.Equal(t, http.StatusOK, s.get(t, "/kiosk/state").Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, 1000)
	require.NoError(t, s.cache.Refresh(context.Background()))

	rec := s.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, conf.DriverMemory, body["backend"])

	rec = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewGRPCServer(t *testing.T) {
	bc := conf.Default()
	bc.Server.Grpc.Addr = "127.0.0.1:0"
	assert.NotNil(t, NewGRPCServer(bc, log.DefaultLogger))
}

func TestAggregationFailure(t *testing.T) {
	s := newTestServerWith(t, 1000, failingRepo{})

	rec := s.get(t, "/api/kiosk-data")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Cache-Control"))
	body := decode(t, rec)
	assert.Equal(t, service.LoadFailedMessage, body["error"])
	assert.Equal(t, []any{}, body["buildings"])
	assert.Equal(t, []any{}, body["connections"])
	assert.NotZero(t, body["timestamp"])

	// 管理端读取失败仍返回 200
	rec = s.get(t, "/admin")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, service.LoadFailedMessage, body["error"])
	assert.Equal(t, []any{}, body["buildings"])

	rec = s.do(httptest.NewRequest(http.MethodPost, "/kiosk/refresh", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "데이터를 불러오지 못했습니다.", decode(t, rec)["error"])
	st := s.cache.State()
	assert.Equal(t, kiosk.FetchFailedMessage, st.Error)
	assert.False(t, st.IsLoading)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/kiosk/clear-error", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, hasError := decode(t, rec)["error"]
	assert.False(t, hasError)
	assert.Empty(t, s.cache.State().Error)
}

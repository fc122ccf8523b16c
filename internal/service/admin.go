package service

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/kiosk"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// AdminOperation 管理端 operation 前缀，限流按此匹配
const AdminOperation = "/admin"

const (
	fieldAction   = "action"
	fieldImage    = "image"
	maxFormMemory = 16 << 20
)

// ErrInvalidAction 未知的 action
var ErrInvalidAction = kerrors.BadRequest("INVALID_ACTION", "Invalid action")

// AdminService 管理端写入口。写成功后把结果投影进终端缓存。
type AdminService struct {
	facility  *biz.FacilityUsecase
	snapshots *biz.SnapshotUsecase
	cache     *kiosk.Cache
	log       *log.Helper
}

func NewAdminService(facility *biz.FacilityUsecase, snapshots *biz.SnapshotUsecase, cache *kiosk.Cache, logger log.Logger) *AdminService {
	return &AdminService{facility: facility, snapshots: snapshots, cache: cache, log: log.NewHelper(logger)}
}

type adminHandler func(ctx context.Context, f form) (map[string]any, error)

func (s *AdminService) handlers() map[string]adminHandler {
	return map[string]adminHandler{
		"createBuilding":      s.createBuilding,
		"createFloor":         s.createFloor,
		"createRoom":          s.createRoom,
		"updateRoom":          s.updateRoom,
		"deleteRoom":          s.deleteRoom,
		"seedDatabase":        s.seedDatabase,
		"deleteFloor":         s.deleteFloor,
		"deleteBuilding":      s.deleteBuilding,
		"createConnection":    s.createConnection,
		"setConnectionActive": s.setConnectionActive,
	}
}

// Load GET /admin，读取失败时仍返回 200 和空列表
func (s *AdminService) Load(ctx http.Context) error {
	out, err := invoke(ctx, AdminOperation, func(c context.Context) (any, error) {
		tree, err := s.snapshots.Tree(c)
		if err != nil {
			s.log.WithContext(c).Errorf("admin load: %v", err)
			return map[string]any{"buildings": []struct{}{}, "error": LoadFailedMessage}, nil
		}
		return map[string]any{"buildings": tree}, nil
	})
	if err != nil {
		return err
	}
	return ctx.JSON(200, out)
}

// Action POST /admin，按 action 字段分派
func (s *AdminService) Action(ctx http.Context) error {
	f, err := parseForm(ctx.Request())
	if err != nil {
		return err
	}
	name := f.value(fieldAction)
	out, err := invoke(ctx, AdminOperation+"/"+name, func(c context.Context) (any, error) {
		h, ok := s.handlers()[name]
		if !ok {
			return nil, ErrInvalidAction
		}
		return h(c, f)
	})
	if err != nil {
		s.log.WithContext(ctx).Warnf("admin action %s: %v", name, err)
		return err
	}
	return ctx.JSON(200, out)
}

func success(key string, v any) map[string]any {
	out := map[string]any{"success": true}
	if key != "" {
		out[key] = v
	}
	return out
}

func (s *AdminService) createBuilding(ctx context.Context, f form) (map[string]any, error) {
	b, err := s.facility.CreateBuilding(ctx, biz.BuildingInput{
		Name:        f.value("name"),
		Description: f.value("description"),
	})
	if err != nil {
		return nil, err
	}
	s.cache.AddBuilding(biz.BuildingWithFloors{Building: *b, Floors: []biz.FloorWithRooms{}})
	return success("building", b), nil
}

func (s *AdminService) createFloor(ctx context.Context, f form) (map[string]any, error) {
	number, err := f.requiredInt("floorNumber")
	if err != nil {
		return nil, err
	}
	fl, err := s.facility.CreateFloor(ctx, biz.FloorInput{
		BuildingID:  f.value("buildingId"),
		FloorNumber: number,
		Name:        f.value("name"),
		Description: f.value("description"),
	})
	if err != nil {
		return nil, err
	}
	s.project(ctx, fl.BuildingID)
	return success("floor", fl), nil
}

func (s *AdminService) createRoom(ctx context.Context, f form) (map[string]any, error) {
	x, err := f.optionalInt("positionX")
	if err != nil {
		return nil, err
	}
	y, err := f.optionalInt("positionY")
	if err != nil {
		return nil, err
	}
	r, err := s.facility.CreateRoom(ctx, biz.RoomInput{
		FloorID:     f.value("floorId"),
		Name:        f.value("name"),
		Description: f.value("description"),
		PositionX:   x,
		PositionY:   y,
		Image:       f.image,
	})
	if err != nil {
		return nil, err
	}
	s.projectFloor(ctx, r.FloorID)
	return success("room", r), nil
}

// updateRoom 空字符串视为未提供
func (s *AdminService) updateRoom(ctx context.Context, f form) (map[string]any, error) {
	var p biz.RoomPatch
	if v := f.value("name"); v != "" {
		p.Name = &v
	}
	if v := f.value("description"); v != "" {
		p.Description = &v
	}
	p.Image = f.image
	r, err := s.facility.UpdateRoom(ctx, f.value("roomId"), p)
	if err != nil {
		return nil, err
	}
	s.projectFloor(ctx, r.FloorID)
	return success("room", r), nil
}

func (s *AdminService) deleteRoom(ctx context.Context, f form) (map[string]any, error) {
	r, err := s.facility.DeleteRoom(ctx, f.value("roomId"))
	if err != nil {
		return nil, err
	}
	s.projectFloor(ctx, r.FloorID)
	return success("", nil), nil
}

func (s *AdminService) seedDatabase(ctx context.Context, _ form) (map[string]any, error) {
	created, err := s.facility.Seed(ctx)
	for _, b := range created {
		s.project(ctx, b.ID)
	}
	if err != nil {
		return nil, err
	}
	out := success("", nil)
	out["message"] = biz.SeedMessage
	return out, nil
}

func (s *AdminService) deleteFloor(ctx context.Context, f form) (map[string]any, error) {
	buildingID, err := s.facility.DeleteFloor(ctx, f.value("floorId"))
	if err != nil {
		return nil, err
	}
	s.project(ctx, buildingID)
	// 引用该楼层的通道已被级联删除
	s.refresh(ctx)
	return success("", nil), nil
}

func (s *AdminService) deleteBuilding(ctx context.Context, f form) (map[string]any, error) {
	id := f.value("buildingId")
	if err := s.facility.DeleteBuilding(ctx, id); err != nil {
		return nil, err
	}
	s.cache.RemoveBuilding(id)
	s.refresh(ctx)
	return success("", nil), nil
}

func (s *AdminService) createConnection(ctx context.Context, f form) (map[string]any, error) {
	active, err := f.boolean("isActive", true)
	if err != nil {
		return nil, err
	}
	c, err := s.facility.CreateConnection(ctx, biz.ConnectionInput{
		Building1ID: f.value("building1Id"),
		Floor1ID:    f.value("floor1Id"),
		Building2ID: f.value("building2Id"),
		Floor2ID:    f.value("floor2Id"),
		Name:        f.value("name"),
		IsActive:    active,
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return success("connection", c), nil
}

func (s *AdminService) setConnectionActive(ctx context.Context, f form) (map[string]any, error) {
	active, err := f.boolean("isActive", true)
	if err != nil {
		return nil, err
	}
	c, err := s.facility.SetConnectionActive(ctx, f.value("connectionId"), active)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return success("connection", c), nil
}

// project 用最新的建筑子树替换缓存中的条目，缓存里没有时追加
func (s *AdminService) project(ctx context.Context, buildingID string) {
	tree, err := s.facility.BuildingTree(ctx, buildingID)
	if err != nil {
		s.log.WithContext(ctx).Warnf("project building %s: %v", buildingID, err)
		return
	}
	if _, ok := s.cache.GetBuilding(buildingID); ok {
		s.cache.ReplaceBuilding(*tree)
		return
	}
	s.cache.AddBuilding(*tree)
}

func (s *AdminService) projectFloor(ctx context.Context, floorID string) {
	fl, err := s.facility.GetFloor(ctx, floorID)
	if err != nil {
		s.log.WithContext(ctx).Warnf("project floor %s: %v", floorID, err)
		return
	}
	s.project(ctx, fl.BuildingID)
}

// refresh 通道只能通过整体刷新进入缓存，失败不影响写操作的结果。
// 写入已经提交，请求超时或断开不应中断刷新。
func (s *AdminService) refresh(ctx context.Context) {
	if err := s.cache.Refresh(context.WithoutCancel(ctx)); err != nil {
		s.log.WithContext(ctx).Warnf("kiosk cache refresh after write: %v", err)
	}
}

// RegisterAdminHTTPServer 注册管理端路由
func RegisterAdminHTTPServer(s *http.Server, svc *AdminService, export *ExportService) {
	r := s.Route("/")
	r.GET("/admin", svc.Load)
	r.POST("/admin", svc.Action)
	r.GET("/admin/export.xlsx", export.Download)
}

// form 解析后的表单；image 只在上传了非空文件时存在
type form struct {
	values map[string][]string
	image  *biz.Upload
}

func (f form) value(key string) string {
	if vs := f.values[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func (f form) requiredInt(key string) (int, error) {
	v := f.value(key)
	if v == "" {
		return 0, biz.Required(key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, biz.Invalid(key)
	}
	return n, nil
}

func (f form) optionalInt(key string) (*int, error) {
	v := f.value(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, biz.Invalid(key)
	}
	return &n, nil
}

// boolean 兼容复选框的 "on"
func (f form) boolean(key string, def bool) (bool, error) {
	v := strings.ToLower(f.value(key))
	switch v {
	case "":
		return def, nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, biz.Invalid(key)
	}
	return b, nil
}

// parseForm 同时支持 urlencoded 与 multipart。图片最多读取 MaxImageSize+1 字节，超出部分由校验拒绝。
func parseForm(r *nethttp.Request) (form, error) {
	err := r.ParseMultipartForm(maxFormMemory)
	if err != nil && !errors.Is(err, nethttp.ErrNotMultipart) {
		return form{}, kerrors.BadRequest(biz.ReasonValidation, "malformed form").WithCause(err)
	}
	f := form{values: r.Form}
	if r.MultipartForm == nil {
		return f, nil
	}
	file, header, err := r.FormFile(fieldImage)
	if errors.Is(err, nethttp.ErrMissingFile) {
		return f, nil
	}
	if err != nil {
		return form{}, kerrors.BadRequest(biz.ReasonValidation, "malformed image").WithCause(err)
	}
	defer file.Close()
	if header.Size == 0 {
		return f, nil
	}
	body, err := io.ReadAll(io.LimitReader(file, biz.MaxImageSize+1))
	if err != nil {
		return form{}, kerrors.BadRequest(biz.ReasonValidation, "malformed image").WithCause(err)
	}
	f.image = &biz.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        body,
	}
	return f, nil
}

package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/blob"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// ImageCacheControl 文件名带时间戳，内容不会变化
const ImageCacheControl = "public, max-age=31536000, immutable"

// ImageService 提供 memory/fs 存储中的房间图片
type ImageService struct {
	store blob.Store
	log   *log.Helper
}

func NewImageService(store blob.Store, logger log.Logger) *ImageService {
	return &ImageService{store: store, log: log.NewHelper(logger)}
}

type object struct {
	info blob.Info
	body io.ReadCloser
}

// Get GET /images/{key}
func (s *ImageService) Get(ctx http.Context) error {
	key := ctx.Vars().Get("key")
	out, err := invoke(ctx, "/images", func(c context.Context) (any, error) {
		if strings.Contains(key, "..") {
			return nil, biz.NotFound(biz.KindImage, key)
		}
		info, body, err := s.store.Get(c, key)
		if errors.Is(err, blob.ErrNotFound) {
			return nil, biz.NotFound(biz.KindImage, key)
		}
		if err != nil {
			s.log.WithContext(c).Errorf("read image %s: %v", key, err)
			return nil, biz.ErrInternalServer.WithCause(err)
		}
		return object{info: info, body: body}, nil
	})
	if err != nil {
		return err
	}
	obj := out.(object)
	defer obj.body.Close()
	ct := obj.info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := ctx.Response().Header()
	h.Set("Cache-Control", ImageCacheControl)
	if obj.info.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(obj.info.Size, 10))
	}
	return ctx.Stream(200, ct, obj.body)
}

// RegisterImageHTTPServer 注册图片路由
func RegisterImageHTTPServer(s *http.Server, svc *ImageService) {
	s.Route("/").GET("/images/{key:.+}", svc.Get)
}

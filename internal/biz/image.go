package biz

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// MaxImageSize 5 MiB
	MaxImageSize = 5 << 20
	// ImagePrefix 图片在对象存储中的前缀
	ImagePrefix = "kiosk-images/"
)

var imageExt = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Upload 上传的图片
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        []byte
}

func (u *Upload) size() int64 {
	if n := int64(len(u.Body)); n > u.Size {
		return n
	}
	return u.Size
}

func (u *Upload) contentType() string {
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(u.Body)
	}
	return ct
}

// ValidateImage 只允许 jpeg/png/webp 且不超过 5 MiB；先检查类型再检查大小
func ValidateImage(u *Upload) error {
	if _, ok := imageExt[u.contentType()]; !ok {
		return ErrImageUnsupported
	}
	if u.size() > MaxImageSize {
		return ErrImageTooLarge
	}
	return nil
}

// ImageFilename room-<roomId>-<unixMillis>.<ext>，扩展名取自原文件名，缺失时按类型推断
func ImageFilename(u *Upload, roomID string, at time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Filename)), ".")
	if ext == "" {
		ext = imageExt[u.contentType()]
	}
	return fmt.Sprintf("room-%s-%d.%s", roomID, at.UnixMilli(), ext)
}

// ImageStore 图片存储，返回可公开访问的 URL
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

type ImageUsecase struct {
	store ImageStore
	log   *log.Helper
	now   func() time.Time
}

func NewImageUsecase(store ImageStore, logger log.Logger) *ImageUsecase {
	return &ImageUsecase{store: store, log: log.NewHelper(logger), now: time.Now}
}

// Upload 校验后写入 kiosk-images/<filename>，失败时不产生 URL
func (uc *ImageUsecase) Upload(ctx context.Context, roomID string, u *Upload) (string, error) {
	if err := ValidateImage(u); err != nil {
		return "", err
	}
	name := ImageFilename(u, roomID, uc.now())
	url, err := uc.store.Put(ctx, ImagePrefix+name, u.contentType(), u.Body)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("upload image %s: %v", name, err)
		return "", ErrInternalServer.WithCause(fmt.Errorf("upload image: %w", err))
	}
	return url, nil
}

func (uc *ImageUsecase) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	if err := uc.store.Delete(ctx, url); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

package data

import (
	"bytes"
	"context"
	"fmt"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/blob"
	"kiosk-go/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// NewBlobStore 按配置选择图片存储驱动
func NewBlobStore(c *conf.Data, logger log.Logger) (blob.Store, error) {
	s, err := blob.Open(context.Background(), blob.Config{
		Driver:    c.Blob.Driver,
		FSRoot:    c.Blob.FSRoot,
		PublicURL: c.Blob.PublicURL,
		S3: blob.S3Config{
			Region:          c.Blob.S3.Region,
			Bucket:          c.Blob.S3.Bucket,
			Endpoint:        c.Blob.S3.Endpoint,
			PathStyle:       c.Blob.S3.PathStyle,
			AccessKeyID:     c.Blob.S3.AccessKeyID,
			SecretAccessKey: c.Blob.S3.SecretAccessKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	log.NewHelper(logger).Infof("image store driver=%s", s.Driver())
	return s, nil
}

type imageStore struct {
	store blob.Store
	log   *log.Helper
}

// NewImageStore biz.ImageStore 的对象存储实现
func NewImageStore(s blob.Store, logger log.Logger) biz.ImageStore {
	return &imageStore{store: s, log: log.NewHelper(logger)}
}

func (s *imageStore) Put(ctx context.Context, key, contentType string, body []byte) (string, error) {
	info, err := s.store.Put(ctx, key, bytes.NewReader(body), contentType)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Delete 只删除本存储签发的 URL，其他地址忽略
func (s *imageStore) Delete(ctx context.Context, url string) error {
	key, ok := s.store.KeyOf(url)
	if !ok {
		s.log.WithContext(ctx).Debugf("image %s is not managed by %s store, skipped", url, s.store.Driver())
		return nil
	}
	if _, err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	return nil
}

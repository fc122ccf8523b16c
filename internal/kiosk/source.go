package kiosk

import (
	"context"
	"fmt"
	"time"

	"kiosk-go/internal/biz"

	"github.com/go-resty/resty/v2"
)

// Source 快照来源
type Source interface {
	Fetch(ctx context.Context) (*biz.Snapshot, error)
}

// SourceFunc 进程内来源，直接调用聚合用例
type SourceFunc func(ctx context.Context) (*biz.Snapshot, error)

func (f SourceFunc) Fetch(ctx context.Context) (*biz.Snapshot, error) {
	return f(ctx)
}

// HTTPSource 通过聚合接口获取快照。非 2xx 视为失败，不重试。
type HTTPSource struct {
	client *resty.Client
	url    string
}

func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &HTTPSource{client: client, url: url}
}

func (s *HTTPSource) Fetch(ctx context.Context) (*biz.Snapshot, error) {
	var snap biz.Snapshot
	resp, err := s.client.R().
		SetContext(ctx).
		ForceContentType("application/json").
		SetResult(&snap).
		Get(s.url)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch snapshot: %s", resp.Status())
	}
	return &snap, nil
}

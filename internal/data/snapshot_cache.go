package data

import (
	"context"
	"errors"
	"sync"
	"time"

	"kiosk-go/internal/biz"
	"kiosk-go/internal/conf"

	"github.com/eko/gocache/lib/v4/store"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const snapshotKey = "kiosk:snapshot"

// snapshotCache 聚合快照的本地缓存。配置 redis 后写操作会广播失效消息，
// 其他副本收到后删除各自的本地副本。
type snapshotCache struct {
	data     *Data
	ttl      time.Duration
	channel  string
	instance string
	log      *log.Helper

	wg     sync.WaitGroup
	pubsub *redis.PubSub
}

// NewSnapshotCache .
func NewSnapshotCache(d *Data, c *conf.Bootstrap, logger log.Logger) (biz.SnapshotCache, func(), error) {
	sc := &snapshotCache{
		data:     d,
		ttl:      c.Kiosk.SnapshotTTL.Duration,
		channel:  c.Data.Redis.Channel,
		instance: uuid.NewString(),
		log:      log.NewHelper(logger),
	}
	if sc.ttl <= 0 {
		sc.ttl = time.Minute
	}
	if sc.channel == "" {
		sc.channel = "kiosk:snapshot:invalidate"
	}
	if d.Redis() != nil {
		if err := sc.subscribe(context.Background()); err != nil {
			return nil, nil, err
		}
	}
	return sc, sc.close, nil
}

func (c *snapshotCache) subscribe(ctx context.Context) error {
	ps := c.data.Redis().Subscribe(ctx, c.channel)
	// 等待订阅确认，连接失败时尽早暴露
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	c.pubsub = ps
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for msg := range ps.Channel() {
			if msg.Payload == c.instance {
				continue
			}
			if err := c.data.Cache().Delete(context.Background(), snapshotKey); err != nil {
				c.log.Debugf("drop local snapshot: %v", err)
			}
		}
	}()
	return nil
}

func (c *snapshotCache) close() {
	if c.pubsub != nil {
		_ = c.pubsub.Close()
		c.wg.Wait()
	}
}

func (c *snapshotCache) Get(ctx context.Context) (*biz.Snapshot, bool) {
	v, err := c.data.Cache().Get(ctx, snapshotKey)
	if err != nil {
		return nil, false
	}
	s, ok := v.(*biz.Snapshot)
	return s, ok
}

func (c *snapshotCache) Set(ctx context.Context, s *biz.Snapshot) error {
	return c.data.Cache().Set(ctx, snapshotKey, s, store.WithExpiration(c.ttl))
}

func (c *snapshotCache) Invalidate(ctx context.Context) error {
	var errs []error
	if err := c.data.Cache().Delete(ctx, snapshotKey); err != nil {
		errs = append(errs, err)
	}
	if rdb := c.data.Redis(); rdb != nil {
		if err := rdb.Publish(ctx, c.channel, c.instance).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

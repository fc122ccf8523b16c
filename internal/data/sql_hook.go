package data

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/go-kratos/kratos/v2/log"
)

type beginKey struct{}

// Hooks 慢 SQL 检测，超过阈值时彩色输出并记录告警日志
type Hooks struct {
	threshold atomic.Int64
	// debug 模式下每条语句都以 debug 级别输出
	debug atomic.Bool
	log   atomic.Pointer[log.Helper]
}

func newHooks(threshold time.Duration, debug bool, logger log.Logger) *Hooks {
	h := &Hooks{}
	h.configure(threshold, debug, logger)
	return h
}

func (h *Hooks) configure(threshold time.Duration, debug bool, logger log.Logger) {
	if threshold <= 0 {
		threshold = 500 * time.Millisecond
	}
	h.threshold.Store(int64(threshold))
	h.debug.Store(debug)
	if logger != nil {
		h.log.Store(log.NewHelper(logger))
	}
}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, ok := ctx.Value(beginKey{}).(time.Time)
	if !ok {
		return ctx, nil
	}
	d := time.Since(begin)
	if h.debug.Load() {
		if l := h.log.Load(); l != nil {
			l.WithContext(ctx).Debugw("msg", "sql", "query", query, "args", args, "took", d.String())
		}
	}
	if d > time.Duration(h.threshold.Load()) {
		color.Red("%v slow  sql: %s %q .took: %s\n", time.Now().Format(time.RFC3339), query, args, d)
		if l := h.log.Load(); l != nil {
			l.WithContext(ctx).Warnw("msg", "slow sql", "query", query, "took", d.String())
		}
	}
	return ctx, nil
}

package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper 周期性地把空闲超过 TTL 的工件从注册表与磁盘上移除。
// 它是唯一会同时读注册表和删文件的 goroutine，磁盘操作全部在锁外进行。
type Sweeper struct {
	store    Store
	registry *Registry
	logger   *logrus.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time
}

// NewSweeper 构造清扫器，默认使用 time.Now 作为时钟。
func NewSweeper(store Store, registry *Registry, logger *logrus.Logger, interval, ttl time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		registry: registry,
		logger:   logger,
		interval: interval,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Run 以固定间隔执行清扫，直到 ctx 被取消。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx, s.now())
		}
	}
}

// Sweep 执行一轮清扫并返回移除数量。先在锁内收集过期名单，再逐个删除
// 磁盘文件；即使磁盘删除失败也会移除注册表条目，残留文件留给退出清理兜底。
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) int {
	expired := s.registry.SnapshotExpired(now, s.ttl)
	for _, name := range expired {
		if err := s.store.Remove(ctx, name); err != nil {
			s.logger.WithFields(logrus.Fields{
				"action":   "sweep",
				"artifact": name,
				"error":    err.Error(),
			}).Warn("artifact_delete_failed")
		}
		s.registry.Remove(name)
	}

	if len(expired) > 0 {
		s.logger.WithFields(logrus.Fields{
			"action":    "sweep",
			"removed":   len(expired),
			"remaining": s.registry.Len(),
		}).Info("sweep_complete")
	}
	return len(expired)
}

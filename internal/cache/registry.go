package cache

import (
	"sort"
	"sync"
	"time"
)

// Registry 在内存中维护「工件名 → 最近访问时间」，是全服务唯一的共享
// 可变状态。所有方法都在同一把互斥锁下完成，且从不触碰磁盘。
type Registry struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// Entry 是注册表的一条只读快照记录。
type Entry struct {
	Name       string
	LastAccess time.Time
}

// NewRegistry 构造空注册表，默认使用 time.Now 作为时钟。
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Put 以当前时间登记一个新工件；同名条目会被覆盖。
func (r *Registry) Put(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = r.now()
}

// Touch 刷新访问时间实现滑动 TTL；条目不存在时返回 false。
func (r *Registry) Touch(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	r.entries[name] = r.now()
	return true
}

// Remove 删除条目，条目不存在时为空操作。
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Len 返回当前登记的工件数量。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot 返回按名称排序的条目副本，供诊断端遍历。
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Entry, 0, len(r.entries))
	for name, last := range r.entries {
		result = append(result, Entry{Name: name, LastAccess: last})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// SnapshotExpired 收集空闲时间超过 ttl 的名称。只做判定不做删除，
// 磁盘操作由调用方在锁外执行。
func (r *Registry) SnapshotExpired(now time.Time, ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for name, last := range r.entries {
		if now.Sub(last) > ttl {
			expired = append(expired, name)
		}
	}
	return expired
}

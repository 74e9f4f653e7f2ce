package mirror

import (
	"fmt"
	"sort"

	"github.com/mirror-hub/mirror-hub/internal/source"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

// Registry 持有键到 Entry 的映射，并独占一个 Store 与一个 Source，
// 两者在构造时固定。所有刷新策略都在 Orchestrator 中，注册表本身不做并发控制。
type Registry struct {
	name    string
	entries map[string]*Entry
	store   store.Store
	source  source.Source
}

// NewRegistry 构建空注册表。name 同时充当存储命名空间与日志字段。
func NewRegistry(name string, st store.Store, src source.Source) (*Registry, error) {
	if name == "" {
		return nil, fmt.Errorf("registry name required")
	}
	if st == nil {
		return nil, fmt.Errorf("registry %s: store required", name)
	}
	if src == nil {
		return nil, fmt.Errorf("registry %s: source required", name)
	}

	return &Registry{
		name:    name,
		entries: make(map[string]*Entry),
		store:   st,
		source:  src,
	}, nil
}

// Add 登记一个对象。键在注册表内唯一，重复登记返回错误。
func (r *Registry) Add(key, displayName string) error {
	if key == "" {
		return fmt.Errorf("registry %s: object key required", r.name)
	}
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("registry %s: duplicate object key %s", r.name, key)
	}
	r.entries[key] = &Entry{SourceKey: key, DisplayName: displayName}
	return nil
}

// Name 返回镜像名称（即存储命名空间）。
func (r *Registry) Name() string {
	return r.name
}

// Store 返回注册表独占的持久化存储。
func (r *Registry) Store() store.Store {
	return r.store
}

// Source 返回注册表独占的远端来源。
func (r *Registry) Source() source.Source {
	return r.source
}

// Len 返回已登记对象数量。
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) lookup(key string) *Entry {
	return r.entries[key]
}

// keys 返回排序后的对象键，保证单次扫描内的处理顺序稳定。
func (r *Registry) keys() []string {
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

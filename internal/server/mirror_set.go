package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mirror-hub/mirror-hub/internal/mirror"
)

// MirrorSet 提供镜像名称到 Orchestrator 的查询能力，对象服务与诊断接口共用。
// 调用方应在启动阶段创建一次并复用。
type MirrorSet struct {
	mirrors map[string]*mirror.Orchestrator
	ordered []*mirror.Orchestrator
}

// NewMirrorSet 根据已构建的调度器集合建立名称映射，名称冲突视为配置错误。
func NewMirrorSet(orchestrators []*mirror.Orchestrator) (*MirrorSet, error) {
	if len(orchestrators) == 0 {
		return nil, errors.New("at least one mirror required")
	}

	set := &MirrorSet{
		mirrors: make(map[string]*mirror.Orchestrator, len(orchestrators)),
	}
	for _, orch := range orchestrators {
		name := normalizeMirrorName(orch.Registry().Name())
		if name == "" {
			return nil, errors.New("mirror name required")
		}
		if _, exists := set.mirrors[name]; exists {
			return nil, fmt.Errorf("duplicate mirror name %s", name)
		}
		set.mirrors[name] = orch
		set.ordered = append(set.ordered, orch)
	}
	return set, nil
}

// Lookup 根据镜像名称查找调度器，名称不区分大小写。
func (s *MirrorSet) Lookup(name string) (*mirror.Orchestrator, bool) {
	if s == nil {
		return nil, false
	}
	orch, ok := s.mirrors[normalizeMirrorName(name)]
	return orch, ok
}

// List 返回按配置定义顺序排列的调度器列表，用于诊断输出。
func (s *MirrorSet) List() []*mirror.Orchestrator {
	if s == nil || len(s.ordered) == 0 {
		return nil
	}
	return append([]*mirror.Orchestrator(nil), s.ordered...)
}

func normalizeMirrorName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
